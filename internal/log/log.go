package log

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var (
	logger    atomic.Pointer[slog.Logger]
	level     = new(slog.LevelVar)
	verbosity atomic.Int32
)

func init() {
	// Warnings only until the CLI has parsed -v.
	level.Set(slog.LevelWarn)
	verbosity.Store(VerbosityWarn)
	logger.Store(slog.New(NewHandler(HandlerOptions{Level: level})))
}

// Options configures Init.
type Options struct {
	Verbosity int
	Format    Format
	Output    io.Writer // stderr when nil
}

// Init replaces the process-wide logger. The CLI calls it once flags are parsed.
func Init(opts Options) {
	verbosity.Store(int32(opts.Verbosity))
	level.Set(VerbosityToLevel(opts.Verbosity))

	l := slog.New(NewHandler(HandlerOptions{
		Level:  level,
		Format: opts.Format,
		Output: opts.Output,
	}))
	logger.Store(l)
	slog.SetDefault(l)
}

// Verbosity returns the -v level the logger was initialized with.
func Verbosity() int {
	return int(verbosity.Load())
}

// Error logs at error level (v=0).
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Info logs at info level (v=2).
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// Component returns the current logger tagged with a component name
// ("server", "mirror", "bundle", ...). Loggers taken before Init keep the
// pre-Init handler, so components are resolved when they are constructed.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}

// Discard returns a logger that drops every record. Packages fall back to it
// when constructed without a logger, and tests use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
