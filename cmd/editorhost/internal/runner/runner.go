// Package runner supervises the child server process of the dev loop.
//
// A Process runs one child at a time. Stop asks it to exit and escalates to
// a kill after a grace period. An exit nobody asked for is reported through
// the OnExit hook and never restarted here; restarting is the caller's call.
package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/albertocavalcante/editorhost/internal/log"
)

// DefaultGracePeriod is how long Stop waits after the polite signal.
const DefaultGracePeriod = 5 * time.Second

// ErrAlreadyRunning is returned by Start when the child is running.
var ErrAlreadyRunning = errors.New("process already running")

// Process supervises a child process.
type Process struct {
	name   string
	args   []string
	env    []string
	dir    string
	stdout io.Writer
	stderr io.Writer
	grace  time.Duration
	logger *slog.Logger
	onExit func(err error)

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitErr  error
	stopping bool
}

// Option configures a Process.
type Option func(*Process)

// WithEnv appends variables to the inherited environment.
func WithEnv(env ...string) Option {
	return func(p *Process) {
		p.env = append(p.env, env...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(p *Process) {
		p.dir = dir
	}
}

// WithOutput sets where the child's stdout and stderr go.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Process) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithGracePeriod sets how long Stop waits before killing.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Process) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) {
		p.logger = l
	}
}

// WithOnExit registers a hook for exits that Stop did not cause.
func WithOnExit(fn func(err error)) Option {
	return func(p *Process) {
		p.onExit = fn
	}
}

// New creates a Process for the given command. Nothing runs until Start.
func New(name string, args []string, opts ...Option) *Process {
	closed := make(chan struct{})
	close(closed)

	p := &Process{
		name:   name,
		args:   args,
		stdout: os.Stdout,
		stderr: os.Stderr,
		grace:  DefaultGracePeriod,
		logger: log.Component("runner"),
		done:   closed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SelfCommand returns the command line that re-runs this binary with args.
// exe overrides the executable path; empty uses os.Executable.
func SelfCommand(exe string, args ...string) (string, []string, error) {
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return "", nil, fmt.Errorf("failed to get executable path: %w", err)
		}
	}
	return exe, args, nil
}

// Start launches the child.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return ErrAlreadyRunning
	}

	cmd := exec.Command(p.name, p.args...)
	cmd.Dir = p.dir
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	cmd.SysProcAttr = childSysProcAttr()
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.name, err)
	}

	done := make(chan struct{})
	p.cmd = cmd
	p.done = done
	p.exitErr = nil
	p.logger.Debug("child started", "pid", cmd.Process.Pid, "cmd", p.name)

	go p.wait(cmd, done)
	return nil
}

func (p *Process) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.cmd = nil
	expected := p.stopping
	p.mu.Unlock()
	close(done)

	if expected {
		p.logger.Debug("child stopped", "pid", cmd.Process.Pid)
		return
	}
	p.logger.Warn("child exited unexpectedly", "pid", cmd.Process.Pid, "error", err)
	if p.onExit != nil {
		p.onExit(err)
	}
}

// Stop terminates the child: a polite signal first, then a kill once the
// grace period passes. Stopping a process that is not running is a no-op.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	if cmd == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.stopping = false
		p.mu.Unlock()
	}()

	killed, err := stopWithGrace(cmd.Process, done, p.grace)
	if killed {
		p.logger.Warn("child ignored termination, killed", "pid", cmd.Process.Pid, "grace", p.grace)
	}
	return err
}

// Restart stops the child if it runs and starts a new one.
func (p *Process) Restart() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.Start()
}

// Done is closed when the current child exits. Before the first Start it
// is already closed.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether a child is running.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Pid returns the running child's PID, or 0.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitErr returns the error of the most recent exit.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}
