// Package log is the process-wide structured logger for editorhost. It wraps
// log/slog behind an atomic pointer and maps kubectl-style -v=N verbosity onto
// slog levels, with one extra level below debug for per-file detail.
package log

import "log/slog"

// LevelTrace sits below slog.LevelDebug. Every copied file and every raw
// watch event is logged at this level.
const LevelTrace = slog.Level(-8)

// Verbosity levels accepted by -v.
const (
	VerbosityError = 0 // errors only
	VerbosityWarn  = 1 // + skipped files, child exits, bundler warnings
	VerbosityInfo  = 2 // + builds, copies, server start
	VerbosityDebug = 3 // + requests, debounced batches, probes
	VerbosityTrace = 4 // + every watch event and copied file
)

// VerbosityToLevel maps -v=N to a slog level. Values past VerbosityTrace
// still mean trace.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= VerbosityError:
		return slog.LevelError
	case v == VerbosityWarn:
		return slog.LevelWarn
	case v == VerbosityInfo:
		return slog.LevelInfo
	case v == VerbosityDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// LevelName returns the display name for a level.
func LevelName(l slog.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.String()
}
