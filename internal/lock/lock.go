package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFileName = "loop.lock"

// ErrAlreadyRunning is returned by Acquire when a live process already
// holds the lock for the directory. PID identifies the owner.
type ErrAlreadyRunning struct {
	PID int
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("another loop instance is already running (pid %d)", e.PID)
}

// Lock is an exclusive per-directory lock backed by a PID-bearing file.
// Liveness of the recorded process, not the file's mere existence,
// decides whether the lock is held: a file left behind by a dead
// process is stale and is discarded on the next Acquire.
type Lock struct {
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock for dir. If a live competing process holds it,
// Acquire fails with *ErrAlreadyRunning before any other work happens.
// A stale lock (dead owner) is removed first.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	if pid, err := readPID(path); err == nil {
		if processAlive(pid) {
			return nil, &ErrAlreadyRunning{PID: pid}
		}
		// Stale lock from a dead process.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	l := &Lock{path: path}
	if err := l.write(os.Getpid()); err != nil {
		return nil, err
	}
	return l, nil
}

// write records pid atomically via a temp file rename so a concurrent
// reader never observes a partially written lock.
func (l *Lock) write(pid int) error {
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("commit lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. Idempotent: releasing an already
// removed lock is not an error, since cleanup runs on every exit path.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// readPID reads the owning pid from a lock file.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content: %w", err)
	}
	return pid, nil
}
