package verify

import (
	"fmt"
	"io"
)

// Level is the outcome of a single check.
type Level int

const (
	LevelPass Level = iota
	LevelWarn
	LevelFail
)

func (l Level) String() string {
	switch l {
	case LevelPass:
		return "pass"
	case LevelWarn:
		return "warn"
	case LevelFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText reads the names MarshalText writes.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*l = LevelPass
	case "warn":
		*l = LevelWarn
	case "fail":
		*l = LevelFail
	default:
		return fmt.Errorf("unknown level %q", text)
	}
	return nil
}

// Result is one recorded check.
type Result struct {
	Name    string `json:"name"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Summary collects results in the order the checks ran.
type Summary struct {
	Results []Result
}

func (s *Summary) add(name string, level Level, msg string) {
	s.Results = append(s.Results, Result{Name: name, Level: level, Message: msg})
}

// Count returns how many results have the given level.
func (s *Summary) Count(level Level) int {
	n := 0
	for _, r := range s.Results {
		if r.Level == level {
			n++
		}
	}
	return n
}

// Failed reports whether any check failed.
func (s *Summary) Failed() bool {
	return s.Count(LevelFail) > 0
}

// ExitCode is 1 when any check failed. Warnings do not fail.
func (s *Summary) ExitCode() int {
	if s.Failed() {
		return 1
	}
	return 0
}

var marks = map[Level]string{
	LevelPass: "✓",
	LevelWarn: "!",
	LevelFail: "✗",
}

// Print writes the results grouped by level, followed by the counts.
func (s *Summary) Print(w io.Writer) {
	for _, level := range []Level{LevelFail, LevelWarn, LevelPass} {
		n := s.Count(level)
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d):\n", heading(level), n)
		for _, r := range s.Results {
			if r.Level == level {
				fmt.Fprintf(w, "  %s [%s] %s\n", marks[level], r.Name, r.Message)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d passed, %d warnings, %d failed\n",
		s.Count(LevelPass), s.Count(LevelWarn), s.Count(LevelFail))
}

func heading(l Level) string {
	switch l {
	case LevelFail:
		return "Failed"
	case LevelWarn:
		return "Warnings"
	default:
		return "Passed"
	}
}
