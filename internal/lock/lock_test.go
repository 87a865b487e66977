package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_FreshDirectory(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data[:len(data)-1]))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestAcquire_LiveOwnerFails(t *testing.T) {
	dir := t.TempDir()

	// Current process is alive, so its lock must block a second acquire.
	path := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	_, err := Acquire(dir)
	require.Error(t, err)

	var already *ErrAlreadyRunning
	require.ErrorAs(t, err, &already)
	assert.Equal(t, os.Getpid(), already.PID)
}

func TestAcquire_StaleOwnerTakesOver(t *testing.T) {
	dir := t.TempDir()

	// Use a very high PID that almost certainly doesn't exist.
	path := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data[:len(data)-1]))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid, "stale lock should be replaced with our pid")
}

func TestAcquire_GarbageLockFileTakesOver(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()
}

func TestRelease_RemovesFile(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)

	require.NoError(t, l.Release())

	_, err = os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRelease_Idempotent(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	assert.NoError(t, l.Release(), "double release must not fail")
}

func TestRelease_NilLock(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
