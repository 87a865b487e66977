//go:build windows

package lock

import (
	"os"
	"syscall"
)

// processAlive checks whether pid refers to a live process.
// On Windows, FindProcess always succeeds; probe with Signal(0).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
