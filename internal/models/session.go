package models

import (
	"fmt"
	"os"
	"time"
)

// SessionStatus represents the state of a loop session.
// Transitions are monotonic: running is the only non-terminal value.
type SessionStatus string

const (
	SessionStatusRunning      SessionStatus = "running"
	SessionStatusCompleted    SessionStatus = "completed"
	SessionStatusInterrupted  SessionStatus = "interrupted"
	SessionStatusLimitReached SessionStatus = "limit_reached"
)

// Terminal reports whether the status is a terminal value.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusRunning && s != ""
}

// Session is the single mutable state record for one run of the loop.
// It is rewritten to disk after every mutation so an external status
// tool can inspect progress while the loop runs.
type Session struct {
	ID              string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	Iteration       int           `json:"iteration"`
	CompletionCount int           `json:"completion_count"`
	Task            string        `json:"task"`
	WorkDir         string        `json:"work_dir"`
	TotalCostUSD    float64       `json:"total_cost"`
	StartedAt       time.Time     `json:"started_at"`
	LastUpdate      time.Time     `json:"last_update"`
}

// NewSession creates a running session for the given task and working
// directory. The session ID is derived from the start time and pid so
// concurrent invocations against different log directories never collide.
func NewSession(task, workDir string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         fmt.Sprintf("%s-%d", now.Format("20060102-150405"), os.Getpid()),
		Status:     SessionStatusRunning,
		Task:       task,
		WorkDir:    workDir,
		StartedAt:  now,
		LastUpdate: now,
	}
}

// Finalize sets a terminal status and stamps the update time.
func (s *Session) Finalize(status SessionStatus) {
	s.Status = status
	s.LastUpdate = time.Now().UTC()
}
