package models

import "time"

// EventLevel classifies a session log entry.
type EventLevel string

const (
	EventInfo    EventLevel = "info"
	EventWarning EventLevel = "warning"
	EventError   EventLevel = "error"
	EventSuccess EventLevel = "success"
)

// Event is one entry in the append-only session log, written as a
// single JSON line so offline tools can parse the stream without
// coordinating with the running loop.
type Event struct {
	Level     EventLevel     `json:"level"`
	Timestamp time.Time      `json:"ts"`
	Message   string         `json:"msg"`
	SessionID string         `json:"session_id"`
	Iteration int            `json:"iteration"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// IterationRecord captures one pass of the loop. It is transient:
// only its derived values (cost delta, completion match) survive into
// the session state and log.
type IterationRecord struct {
	Prompt       string
	Output       string
	ExitCode     int
	CostDeltaUSD float64
	PhraseFound  bool
}
