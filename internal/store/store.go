package store

import (
	"context"

	"looper/internal/models"
)

// Store defines the persistence interface for the session archive.
type Store interface {
	CreateSession(ctx context.Context, s *models.ArchivedSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ArchivedSession, error)
	ListSessions(ctx context.Context, limit int) ([]*models.ArchivedSession, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
