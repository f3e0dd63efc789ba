package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile records the PID of a long-running editorhost process so other
// invocations can tell whether it is still alive.
type PIDFile struct {
	Path string
}

// PIDStatus is what a PID file says about its process.
type PIDStatus struct {
	PID     int  `json:"pid,omitempty"`
	Running bool `json:"running"`
	Stale   bool `json:"stale,omitempty"` // file exists but the process is gone
}

// Write stores pid, creating the parent directory.
func (f PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(f.Path, []byte(strconv.Itoa(pid)), 0o600)
}

// Read returns the stored PID.
func (f PIDFile) Read() (int, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// Remove deletes the file. A missing file is not an error.
func (f PIDFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Status reads the file and probes the process.
func (f PIDFile) Status() PIDStatus {
	pid, err := f.Read()
	if err != nil {
		return PIDStatus{}
	}
	if IsProcessRunning(pid) {
		return PIDStatus{PID: pid, Running: true}
	}
	return PIDStatus{PID: pid, Stale: true}
}

// IsProcessRunning reports whether a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return processExists(pid)
}
