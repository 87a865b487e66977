//go:build !windows

package lock

import "syscall"

// processAlive checks whether pid refers to a live process.
// Signal 0 tests existence without sending a signal.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
