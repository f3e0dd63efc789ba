// Package verify audits a self-hosted editor setup.
//
// A Runner performs a fixed, ordered sequence of checks: required and
// optional files, substrings in config and document files, the copy
// manifest, then HTTP probes against a running server. Every check records
// its own Result; nothing aborts the checks after it and nothing is retried.
package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/internal/log"
)

// DefaultTimeout bounds each HTTP probe when Runner.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Probe is one HTTP GET and its expected outcome.
type Probe struct {
	Path        string
	Status      int
	ContentType string // prefix match; empty skips the check
}

// ContainsCheck requires every substring to appear in File.
type ContainsCheck struct {
	File       string
	Substrings []string
}

// DefaultProbes returns the probes a healthy server passes: liveness,
// diagnostics, the library entry module and a missing script.
func DefaultProbes(libraryPrefix string) []Probe {
	return []Probe{
		{Path: "/health", Status: http.StatusOK, ContentType: "application/json"},
		{Path: "/debug/files", Status: http.StatusOK, ContentType: "application/json"},
		{Path: path.Join("/", libraryPrefix, "index.mjs"), Status: http.StatusOK, ContentType: "application/javascript"},
		{Path: "/nonexistent.mjs", Status: http.StatusNotFound},
	}
}

// Runner holds the checks to perform. Relative file paths resolve against Root.
type Runner struct {
	Root     string
	Files    []string // must exist
	Optional []string // missing is a warning
	Contains []ContainsCheck

	// ManifestPath is the copy manifest; Required lists the entries it must
	// record as found. Empty ManifestPath skips the manifest check.
	ManifestPath string
	Required     []string

	Probes   []Probe
	BaseURL  string
	Timeout  time.Duration
	SkipHTTP bool
	Client   *http.Client
	Logger   *slog.Logger
}

// Run performs every check in order.
func (r *Runner) Run(ctx context.Context) *Summary {
	logger := r.Logger
	if logger == nil {
		logger = log.Component("verify")
	}

	s := &Summary{}
	r.checkFiles(s)
	r.checkContains(s)
	r.checkManifest(s)
	if r.SkipHTTP {
		s.add("http", LevelWarn, "HTTP probes skipped")
	} else {
		r.checkProbes(ctx, s, logger)
	}

	logger.Debug("verification finished",
		"passed", s.Count(LevelPass),
		"warnings", s.Count(LevelWarn),
		"failed", s.Count(LevelFail))
	return s
}

func (r *Runner) resolve(p string) string {
	if filepath.IsAbs(p) || r.Root == "" {
		return p
	}
	return filepath.Join(r.Root, filepath.FromSlash(p))
}

func (r *Runner) checkFiles(s *Summary) {
	for _, f := range r.Files {
		if _, err := os.Stat(r.resolve(f)); err != nil {
			s.add("file", LevelFail, fmt.Sprintf("%s: missing", f))
			continue
		}
		s.add("file", LevelPass, fmt.Sprintf("%s: exists", f))
	}
	for _, f := range r.Optional {
		if _, err := os.Stat(r.resolve(f)); err != nil {
			s.add("file", LevelWarn, fmt.Sprintf("%s: missing (optional)", f))
			continue
		}
		s.add("file", LevelPass, fmt.Sprintf("%s: exists", f))
	}
}

func (r *Runner) checkContains(s *Summary) {
	for _, c := range r.Contains {
		data, err := os.ReadFile(r.resolve(c.File))
		if err != nil {
			s.add("contains", LevelFail, fmt.Sprintf("%s: cannot read: %v", c.File, err))
			continue
		}
		content := string(data)
		for _, sub := range c.Substrings {
			if strings.Contains(content, sub) {
				s.add("contains", LevelPass, fmt.Sprintf("%s: contains %q", c.File, sub))
			} else {
				s.add("contains", LevelFail, fmt.Sprintf("%s: does not contain %q", c.File, sub))
			}
		}
	}
}

func (r *Runner) checkManifest(s *Summary) {
	if r.ManifestPath == "" {
		return
	}

	m, err := mirror.ReadManifest(r.resolve(r.ManifestPath))
	if err != nil {
		s.add("manifest", LevelFail, fmt.Sprintf("cannot read manifest: %v", err))
		return
	}
	if m.Status != mirror.StatusOK {
		s.add("manifest", LevelFail, fmt.Sprintf("manifest status is %q", m.Status))
		return
	}

	found := make(map[string]bool, len(m.Files))
	for _, e := range m.Files {
		found[e.Path] = e.Found
	}
	ok := true
	for _, req := range r.Required {
		if !found[req] {
			s.add("manifest", LevelFail, fmt.Sprintf("%s: not recorded as found", req))
			ok = false
		}
	}
	if ok {
		s.add("manifest", LevelPass, fmt.Sprintf("manifest %s lists %d required entries (copied %s)",
			m.ID, len(r.Required), m.Timestamp.Format(time.RFC3339)))
	}
}

func (r *Runner) checkProbes(ctx context.Context, s *Summary, logger *slog.Logger) {
	client := r.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := strings.TrimSuffix(r.BaseURL, "/")

	for _, p := range r.Probes {
		level, msg := probe(ctx, client, base, p, timeout)
		logger.Debug("probe", "path", p.Path, "level", level, "message", msg)
		s.add("http", level, msg)
	}
}

func probe(ctx context.Context, client *http.Client, base string, p Probe, timeout time.Duration) (Level, string) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := base + p.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LevelFail, fmt.Sprintf("GET %s: %v", p.Path, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return LevelFail, fmt.Sprintf("GET %s: %v", p.Path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != p.Status {
		return LevelFail, fmt.Sprintf("GET %s: status %d, want %d", p.Path, resp.StatusCode, p.Status)
	}
	if ct := resp.Header.Get("Content-Type"); p.ContentType != "" && !strings.HasPrefix(ct, p.ContentType) {
		return LevelFail, fmt.Sprintf("GET %s: content-type %q, want %q", p.Path, ct, p.ContentType)
	}
	return LevelPass, fmt.Sprintf("GET %s: %d", p.Path, resp.StatusCode)
}
