package devloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albertocavalcante/editorhost/internal/log"
)

// BuildFunc performs one build. The context is never cancelled while the
// build runs; shutdown waits for it instead.
type BuildFunc func(ctx context.Context, id string) error

// Options configures a Coordinator.
type Options struct {
	// Build is required.
	Build BuildFunc

	// RebuildDelay is the pause before a queued build starts.
	RebuildDelay time.Duration

	// OnStart is called when a build begins.
	OnStart func(id string)

	// OnFinish is called with every build outcome.
	OnFinish func(id string, elapsed time.Duration, err error)

	// OnSuccess is called after a successful build, unless shutting down.
	OnSuccess func(ctx context.Context, id string)

	Logger *slog.Logger
}

type buildResult struct {
	id      string
	elapsed time.Duration
	err     error
}

// Coordinator serializes builds requested through Trigger.
type Coordinator struct {
	opts     Options
	logger   *slog.Logger
	triggers chan struct{}

	mu     sync.Mutex
	state  State
	builds int
}

// NewCoordinator creates a Coordinator. Call Run to start it.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Build == nil {
		return nil, errors.New("build function is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("devloop")
	}
	return &Coordinator{
		opts:     opts,
		logger:   logger,
		triggers: make(chan struct{}, 1),
	}, nil
}

// Trigger records a source change. It never blocks; triggers that arrive
// while one is already pending collapse into it.
func (c *Coordinator) Trigger() {
	select {
	case c.triggers <- struct{}{}:
	default:
	}
}

// State returns a snapshot of the state machine.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Builds returns how many builds have started.
func (c *Coordinator) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

func (c *Coordinator) publish(m *Machine, started bool) {
	c.mu.Lock()
	c.state = m.State()
	if started {
		c.builds++
	}
	c.mu.Unlock()
}

// Run drives the state machine until ctx is cancelled. An in-flight build
// is awaited before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	var (
		m        Machine
		inflight bool
		delay    <-chan time.Time
		done     = make(chan buildResult, 1)
	)

	buildCtx := context.WithoutCancel(ctx)
	start := func() {
		id := uuid.NewString()
		inflight = true
		c.publish(&m, true)
		if c.opts.OnStart != nil {
			c.opts.OnStart(id)
		}
		c.logger.Debug("build started", "build", id)
		go func() {
			began := time.Now()
			err := c.opts.Build(buildCtx, id)
			done <- buildResult{id: id, elapsed: time.Since(began), err: err}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if inflight {
				c.logger.Debug("waiting for in-flight build")
				c.finish(ctx, <-done)
			}
			return nil

		case <-c.triggers:
			// A queued build that has not started yet already covers this change.
			if delay != nil {
				continue
			}
			if m.Change() {
				start()
			} else {
				c.publish(&m, false)
			}

		case res := <-done:
			inflight = false
			c.finish(ctx, res)
			if m.Done() {
				delay = time.After(c.opts.RebuildDelay)
			}
			c.publish(&m, false)

		case <-delay:
			delay = nil
			start()
		}
	}
}

func (c *Coordinator) finish(ctx context.Context, res buildResult) {
	if c.opts.OnFinish != nil {
		c.opts.OnFinish(res.id, res.elapsed, res.err)
	}
	if res.err != nil {
		c.logger.Warn("build failed", "build", res.id, "error", res.err)
		return
	}
	c.logger.Debug("build finished", "build", res.id, "elapsed", res.elapsed)
	if c.opts.OnSuccess != nil && ctx.Err() == nil {
		c.opts.OnSuccess(ctx, res.id)
	}
}
