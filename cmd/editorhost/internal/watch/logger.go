package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger handles dev mode output formatting.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	mu    sync.Mutex
	stats Stats
}

// Stats tracks statistics for the dev session.
type Stats struct {
	Builds    int
	Failures  int
	Errors    int
	Restarts  int
	StartTime time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats:   Stats{StartTime: time.Now()},
	}
}

// Ready logs that the watcher is running.
func (l *Logger) Ready(dirs int, roots []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"dirs":  dirs,
			"roots": roots,
		})
		return
	}

	l.printf("editorhost: watching %d directories in %s\n", dirs, strings.Join(roots, ", "))
	l.println("editorhost: ready")
}

// ServerStarted logs that the child server is running.
func (l *Logger) ServerStarted(pid int, url string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "server_started",
			"pid":   pid,
			"url":   url,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	l.printf("[%s] server running at %s (pid %d)\n", l.timestamp(), url, pid)
}

// ServerRestarting logs an on-demand restart of the child server.
func (l *Logger) ServerRestarting() {
	l.mu.Lock()
	l.stats.Restarts++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "server_restarting",
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	l.printf("[%s] restarting server...\n", l.timestamp())
}

// ServerExited logs that the child server stopped on its own.
func (l *Logger) ServerExited(err error) {
	msg := "exited"
	if err != nil {
		msg = err.Error()
	}
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "server_exited",
			"error": msg,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s server %s; fix the problem and save a file to restart it, or restart dev\n",
		l.timestamp(), xmark, msg)
}

// FileChanged logs a file change event.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Rebuilding logs that a build is starting.
func (l *Logger) Rebuilding(id string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "rebuilding",
			"build": id,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	l.printf("[%s] rebuilding...\n", l.timestamp())
}

// Rebuilt logs a finished build.
func (l *Logger) Rebuilt(id string, elapsed time.Duration, err error) {
	l.mu.Lock()
	l.stats.Builds++
	if err != nil {
		l.stats.Failures++
	}
	l.mu.Unlock()

	if l.jsonOut {
		ev := map[string]any{
			"event":       "rebuilt",
			"build":       id,
			"duration_ms": elapsed.Milliseconds(),
			"ok":          err == nil,
			"time":        time.Now().Format(time.RFC3339),
		}
		if err != nil {
			ev["error"] = err.Error()
		}
		l.writeJSON(ev)
		return
	}

	if err != nil {
		xmark := l.colorize("✗", ChangeDeleted)
		l.printf("[%s] %s build failed:\n%v\n", l.timestamp(), xmark, err)
		return
	}
	checkmark := l.colorize("✓", ChangeAdded)
	l.printf("[%s] %s rebuilt in %s\n", l.timestamp(), checkmark, elapsed.Round(time.Millisecond))
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.mu.Lock()
	l.stats.Errors++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Debugf prints a diagnostic line in verbose mode only.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose || l.jsonOut {
		return
	}
	l.printf("[%s] "+format+"\n", append([]any{l.timestamp()}, args...)...)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "shutdown",
			"builds":   stats.Builds,
			"failures": stats.Failures,
			"errors":   stats.Errors,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}

	l.println()
	l.printf("editorhost: shutting down (%d builds, %d failed, %d errors)\n",
		stats.Builds, stats.Failures, stats.Errors)
}

// Stats returns the current session statistics.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// timestamp returns the current time formatted as HH:MM:SS.
func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m" // green
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

// writeJSON writes one JSON object per line.
func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// printf writes to the output; write errors are ignored.
func (l *Logger) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

// println writes a line to the output; write errors are ignored.
func (l *Logger) println(args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.writer, args...)
}
