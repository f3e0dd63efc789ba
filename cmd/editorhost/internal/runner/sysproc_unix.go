//go:build unix

package runner

import (
	"os"
	"syscall"
)

// childSysProcAttr puts the child in its own process group so a terminal
// Ctrl-C reaches only the supervisor, which then stops the child itself.
func childSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// terminate sends SIGTERM.
func terminate(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}

// processExists sends signal 0, which checks existence without delivering
// anything. FindProcess always succeeds on Unix.
func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
