package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looper/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "looper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleSession(sessionID string, started time.Time) *models.ArchivedSession {
	ended := started.Add(5 * time.Minute)
	return &models.ArchivedSession{
		SessionID:       sessionID,
		Mode:            "run",
		Task:            "refactor the config loader",
		Status:          models.SessionStatusCompleted,
		Iterations:      4,
		CompletionCount: 2,
		TotalCostUSD:    1.25,
		WorkDir:         "/tmp/project",
		LogDir:          "/tmp/project/.loop",
		StartedAt:       started,
		EndedAt:         &ended,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleSession("20260830-120000-1234", time.Now().UTC())
	require.NoError(t, s.CreateSession(ctx, rec))
	assert.NotEmpty(t, rec.ID, "row id assigned on insert")

	got, err := s.GetSession(ctx, "20260830-120000-1234")
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "run", got.Mode)
	assert.Equal(t, "refactor the config loader", got.Task)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	assert.Equal(t, 4, got.Iterations)
	assert.Equal(t, 2, got.CompletionCount)
	assert.InDelta(t, 1.25, got.TotalCostUSD, 1e-9)
	require.NotNil(t, got.EndedAt)
	assert.WithinDuration(t, *rec.EndedAt, *got.EndedAt, time.Second)
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateSessionWithoutEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleSession("open-ended", time.Now().UTC())
	rec.Status = models.SessionStatusInterrupted
	rec.EndedAt = nil
	require.NoError(t, s.CreateSession(ctx, rec))

	got, err := s.GetSession(ctx, "open-ended")
	require.NoError(t, err)
	assert.Nil(t, got.EndedAt)
	assert.Equal(t, models.SessionStatusInterrupted, got.Status)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := sampleSession(fmt.Sprintf("sess-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateSession(ctx, rec))
	}

	recs, err := s.ListSessions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "sess-4", recs[0].SessionID)
	assert.Equal(t, "sess-3", recs[1].SessionID)
	assert.Equal(t, "sess-2", recs[2].SessionID)
}

func TestListSessionsDefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleSession("only-one", time.Now().UTC())
	require.NoError(t, s.CreateSession(ctx, rec))

	recs, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDuplicateSessionIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, sampleSession("dup", time.Now().UTC())))
	err := s.CreateSession(ctx, sampleSession("dup", time.Now().UTC()))
	require.Error(t, err, "session_id is unique")
}
