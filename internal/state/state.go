package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"looper/internal/models"
)

const (
	stateFileName = "state.json"
	logFileName   = "session.jsonl"
)

// Store persists the mutable session record and the append-only event
// log for one log directory. The running loop controller is the only
// writer; status tools and the MCP server read without coordination,
// which the atomic state rewrite makes safe.
type Store struct {
	dir string
}

// New creates a Store bound to dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the log directory.
func (s *Store) Dir() string { return s.dir }

// StatePath returns the session state file path.
func (s *Store) StatePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// LogPath returns the session log file path.
func (s *Store) LogPath() string {
	return filepath.Join(s.dir, logFileName)
}

// SaveSession rewrites the state file atomically. Called after every
// session mutation so crash or kill at any point leaves either the old
// or the new record on disk, never a torn one.
func (s *Store) SaveSession(sess *models.Session) error {
	sess.LastUpdate = time.Now().UTC()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := s.StatePath() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, s.StatePath()); err != nil {
		return fmt.Errorf("commit session state: %w", err)
	}
	return nil
}

// LoadSession reads the current session record, if any.
func (s *Store) LoadSession() (*models.Session, error) {
	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session state: %w", err)
	}
	return &sess, nil
}

// Append writes one event as a JSON line to the session log.
func (s *Store) Append(ev models.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(s.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// TailEvents returns up to n most recent events from the session log,
// oldest first. Malformed lines are skipped rather than failing the
// whole read, since a reader may race a partially flushed append.
func (s *Store) TailEvents(n int) ([]models.Event, error) {
	f, err := os.Open(s.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []models.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev models.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan session log: %w", err)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
