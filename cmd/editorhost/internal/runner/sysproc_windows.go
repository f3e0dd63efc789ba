//go:build windows

package runner

import (
	"errors"
	"os"
	"syscall"
)

// childSysProcAttr detaches the child from the console's Ctrl-C group.
func childSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminate has no polite equivalent on Windows; the caller falls back to Kill.
func terminate(*os.Process) error {
	return errors.New("graceful termination not supported on windows")
}

// processExists relies on FindProcess opening a handle, which fails for
// processes that are gone.
func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
