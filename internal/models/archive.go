package models

import "time"

// ArchivedSession is the durable history record written to the SQLite
// archive when a session reaches a terminal status. The live state.json
// stays authoritative while the loop runs; the archive exists so
// `history` and the MCP tools can query past runs across log dirs.
type ArchivedSession struct {
	ID              string
	SessionID       string
	Mode            string // "run" or "todo"
	Task            string
	Status          SessionStatus
	Iterations      int
	CompletionCount int
	TotalCostUSD    float64
	WorkDir         string
	LogDir          string
	StartedAt       time.Time
	EndedAt         *time.Time
}
