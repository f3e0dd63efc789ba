package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile(t *testing.T) {
	f := PIDFile{Path: filepath.Join(t.TempDir(), ".editorhost", "dev.pid")}

	if got := f.Status(); got != (PIDStatus{}) {
		t.Errorf("Status() without a file = %+v, want zero", got)
	}
	if err := f.Remove(); err != nil {
		t.Errorf("Remove() of a missing file error = %v", err)
	}

	if err := f.Write(os.Getpid()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	pid, err := f.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Read() = %d, want %d", pid, os.Getpid())
	}
	if got := f.Status(); !got.Running || got.Stale {
		t.Errorf("Status() for this process = %+v, want running", got)
	}

	if err := f.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Error("PID file still exists after Remove")
	}
}

func TestPIDFile_Invalid(t *testing.T) {
	f := PIDFile{Path: filepath.Join(t.TempDir(), "dev.pid")}
	if err := os.WriteFile(f.Path, []byte("not-a-pid"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read(); err == nil {
		t.Error("Read() should reject non-numeric contents")
	}
	if got := f.Status(); got.Running {
		t.Errorf("Status() = %+v, want not running", got)
	}
}

func TestIsProcessRunning(t *testing.T) {
	tests := []struct {
		name string
		pid  int
		want bool
	}{
		{"self", os.Getpid(), true},
		{"zero", 0, false},
		{"negative", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProcessRunning(tt.pid); got != tt.want {
				t.Errorf("IsProcessRunning(%d) = %v, want %v", tt.pid, got, tt.want)
			}
		})
	}
}
