package watch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Ready(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf})

	logger.Ready(4, []string{"src", "styles"})

	output := buf.String()
	if !strings.Contains(output, "4 directories") {
		t.Errorf("expected directory count in output: %s", output)
	}
	if !strings.Contains(output, "src, styles") {
		t.Errorf("expected roots in output: %s", output)
	}
	if !strings.Contains(output, "ready") {
		t.Errorf("expected 'ready' in output: %s", output)
	}
}

func TestLogger_FileChanged_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, Verbose: true, NoColor: true})

	logger.FileChanged("src/main.js", ChangeAdded)

	output := buf.String()
	if !strings.Contains(output, "+ src/main.js") {
		t.Errorf("expected '+ src/main.js' in output: %s", output)
	}
}

func TestLogger_FileChanged_NotVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf})

	logger.FileChanged("src/main.js", ChangeModified)

	if buf.Len() != 0 {
		t.Errorf("expected no output in non-verbose mode, got: %s", buf.String())
	}
}

func TestLogger_Rebuilt(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Rebuilding("b1")
	logger.Rebuilt("b1", 1500*time.Millisecond, nil)
	logger.Rebuilt("b2", time.Second, errors.New(`src/main.js:1:13: ERROR: Expected identifier`))

	output := buf.String()
	if !strings.Contains(output, "rebuilding") {
		t.Errorf("expected rebuilding line: %s", output)
	}
	if !strings.Contains(output, "rebuilt in 1.5s") {
		t.Errorf("expected duration in output: %s", output)
	}
	if !strings.Contains(output, "build failed") || !strings.Contains(output, "Expected identifier") {
		t.Errorf("expected failure with diagnostics: %s", output)
	}

	stats := logger.Stats()
	if stats.Builds != 2 || stats.Failures != 1 {
		t.Errorf("stats = %+v, want 2 builds and 1 failure", stats)
	}
}

func TestLogger_ServerEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.ServerStarted(4242, "http://localhost:8080")
	logger.ServerRestarting()
	logger.ServerExited(errors.New("exit status 3"))

	output := buf.String()
	for _, want := range []string{"http://localhost:8080", "pid 4242", "restarting server", "exit status 3"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
	if got := logger.Stats().Restarts; got != 1 {
		t.Errorf("Restarts = %d, want 1", got)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, JSON: true})

	logger.Ready(2, []string{"src"})
	logger.FileChanged("src/app.ts", ChangeDeleted)
	logger.Rebuilt("b1", 20*time.Millisecond, nil)
	logger.Error(errors.New("boom"))
	logger.Shutdown()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantEvents := []string{"ready", "file_changed", "rebuilt", "error", "shutdown"}
	if len(lines) != len(wantEvents) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(wantEvents), buf.String())
	}
	for i, line := range lines {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %d is not JSON: %v\n%s", i, err, line)
		}
		if ev["event"] != wantEvents[i] {
			t.Errorf("line %d event = %v, want %s", i, ev["event"], wantEvents[i])
		}
	}

	var rebuilt map[string]any
	_ = json.Unmarshal([]byte(lines[2]), &rebuilt)
	if rebuilt["ok"] != true || rebuilt["build"] != "b1" {
		t.Errorf("rebuilt event = %v", rebuilt)
	}
}

func TestLogger_Colorize(t *testing.T) {
	logger := &Logger{isTTY: true}
	if got := logger.colorize("+", ChangeAdded); got != "\033[32m+\033[0m" {
		t.Errorf("colorize() = %q", got)
	}

	logger.noColor = true
	if got := logger.colorize("+", ChangeAdded); got != "+" {
		t.Errorf("colorize() with noColor = %q", got)
	}
}

func TestLogger_Debugf(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LoggerConfig{Writer: &buf}).Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("Debugf should be silent unless verbose, got %q", buf.String())
	}

	NewLogger(LoggerConfig{Writer: &buf, Verbose: true}).Debugf("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("Debugf output = %q", buf.String())
	}
}

func TestLogger_Shutdown(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Rebuilt("b1", time.Millisecond, nil)
	logger.Error(errors.New("watch failed"))
	logger.Shutdown()

	if !strings.Contains(buf.String(), "1 builds, 0 failed, 1 errors") {
		t.Errorf("unexpected shutdown summary: %s", buf.String())
	}
}
