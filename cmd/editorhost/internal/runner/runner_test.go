package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/albertocavalcante/editorhost/internal/log"
)

const helperEnv = "EDITORHOST_HELPER_PROCESS"

// TestHelperProcess is the child used by the tests below. It does nothing
// unless started through helperProcess.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}

	switch mode {
	case "sleep":
		fmt.Println("ready")
		time.Sleep(time.Minute)
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ready")
		time.Sleep(time.Minute)
	case "exit3":
		os.Exit(3)
	}
	os.Exit(0)
}

// readyWriter closes ready once the child prints "ready".
type readyWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	once  sync.Once
	ready chan struct{}
}

func newReadyWriter() *readyWriter {
	return &readyWriter{ready: make(chan struct{})}
}

func (w *readyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	if strings.Contains(w.buf.String(), "ready") {
		w.once.Do(func() { close(w.ready) })
	}
	return len(p), nil
}

func (w *readyWriter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-w.ready:
	case <-time.After(10 * time.Second):
		t.Fatal("child never became ready")
	}
}

func helperProcess(t *testing.T, mode string, out *readyWriter, opts ...Option) *Process {
	t.Helper()
	base := []Option{
		WithEnv(helperEnv + "=" + mode),
		WithOutput(out, out),
		WithLogger(log.Discard()),
	}
	p := New(os.Args[0], []string{"-test.run=^TestHelperProcess$"}, append(base, opts...)...)
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestProcess_StartStop(t *testing.T) {
	out := newReadyWriter()
	p := helperProcess(t, "sleep", out)

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	out.wait(t)

	if !p.Running() {
		t.Error("Running() = false after Start")
	}
	if p.Pid() == 0 {
		t.Error("Pid() = 0 after Start")
	}
	if err := p.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > DefaultGracePeriod {
		t.Errorf("Stop() took %v, want it under the grace period", elapsed)
	}
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
	if p.Pid() != 0 {
		t.Errorf("Pid() = %d after Stop, want 0", p.Pid())
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done() not closed after Stop")
	}
}

func TestProcess_StopNotStarted(t *testing.T) {
	p := New("does-not-matter", nil, WithLogger(log.Discard()))
	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done() should be closed before Start")
	}
}

func TestProcess_UnexpectedExit(t *testing.T) {
	exits := make(chan error, 1)
	p := helperProcess(t, "exit3", newReadyWriter(), WithOnExit(func(err error) { exits <- err }))

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case err := <-exits:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
			t.Errorf("exit error = %v, want exit status 3", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("OnExit never called")
	}

	<-p.Done()
	if p.Running() {
		t.Error("Running() = true after exit")
	}
	if p.ExitErr() == nil {
		t.Error("ExitErr() = nil, want exit status 3")
	}
}

func TestProcess_StopDoesNotReportExit(t *testing.T) {
	exits := make(chan error, 1)
	out := newReadyWriter()
	p := helperProcess(t, "sleep", out, WithOnExit(func(err error) { exits <- err }))

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	out.wait(t)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-exits:
		t.Errorf("OnExit called for a requested stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcess_Restart(t *testing.T) {
	out := newReadyWriter()
	p := helperProcess(t, "sleep", out)

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	out.wait(t)
	first := p.Pid()

	if err := p.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if !p.Running() {
		t.Fatal("Running() = false after Restart")
	}
	if p.Pid() == first {
		t.Errorf("Pid() = %d after Restart, want a new process", p.Pid())
	}
}

func TestProcess_StartMissingBinary(t *testing.T) {
	p := New("/nonexistent/editorhost-child", nil, WithLogger(log.Discard()))
	if err := p.Start(); err == nil {
		t.Error("Start() should fail for a missing binary")
	}
	if p.Running() {
		t.Error("Running() = true after a failed Start")
	}
}

func TestSelfCommand(t *testing.T) {
	name, args, err := SelfCommand("/opt/editorhost", "serve", "--port", "9000")
	if err != nil {
		t.Fatal(err)
	}
	if name != "/opt/editorhost" {
		t.Errorf("name = %q", name)
	}
	if strings.Join(args, " ") != "serve --port 9000" {
		t.Errorf("args = %v", args)
	}

	name, _, err = SelfCommand("")
	if err != nil {
		t.Fatal(err)
	}
	if name == "" {
		t.Error("SelfCommand(\"\") should resolve the running executable")
	}
}

func TestWithGracePeriod_IgnoresNonPositive(t *testing.T) {
	p := New("x", nil, WithGracePeriod(0))
	if p.grace != DefaultGracePeriod {
		t.Errorf("grace = %v, want %v", p.grace, DefaultGracePeriod)
	}
	p = New("x", nil, WithGracePeriod(time.Second))
	if p.grace != time.Second {
		t.Errorf("grace = %v, want 1s", p.grace)
	}
}
