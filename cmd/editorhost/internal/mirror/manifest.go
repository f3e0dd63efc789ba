package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/albertocavalcante/editorhost/internal/log"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// StatusOK is the only status a written manifest ever carries.
const StatusOK = "ok"

// ErrMissingRequired is returned by Run when a required entry is absent
// from the destination after copying.
var ErrMissingRequired = errors.New("required files missing after copy")

// Entry records whether one required file exists in the destination.
type Entry struct {
	Path  string `json:"path"`
	Found bool   `json:"found"`
	Hash  string `json:"hash,omitempty"`
	Size  int64  `json:"size,omitempty"`
}

// Manifest is the record of a successful copy.
type Manifest struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	Status    string    `json:"status"`
	Copied    int       `json:"copied"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Bytes     int64     `json:"bytes"`
	Files     []Entry   `json:"files"`
}

// Missing returns the required entries that were not found.
func (m *Manifest) Missing() []string {
	return missing(m.Files)
}

// Options configures Run.
type Options struct {
	Source       string
	Dest         string
	Exclude      []string
	Required     []string // relative to Dest
	ManifestPath string   // empty skips writing
	Logger       *slog.Logger
}

// Check reports the existence and content hash of each required path
// under dst.
func Check(dst string, required []string) []Entry {
	entries := make([]Entry, 0, len(required))
	for _, rel := range required {
		entry := Entry{Path: rel}
		path := filepath.Join(dst, filepath.FromSlash(rel))
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			entry.Found = true
			entry.Size = info.Size()
			if hash, err := HashFile(path); err == nil {
				entry.Hash = hash
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func missing(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		if !e.Found {
			out = append(out, e.Path)
		}
	}
	return out
}

// Run copies Source into Dest, checks the required entries and writes the
// manifest. When any required entry is missing it returns
// ErrMissingRequired along with the partial manifest, and removes any
// manifest left over from an earlier run so nothing claims success.
func Run(ctx context.Context, opts Options) (*Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("mirror")
	}

	report, err := CopyTree(ctx, opts.Source, opts.Dest, CopyOptions{
		Exclude: opts.Exclude,
		Logger:  logger,
	})
	if err != nil {
		removeStale(opts.ManifestPath, logger)
		return nil, err
	}

	m := &Manifest{
		Version:   ManifestVersion,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    opts.Source,
		Dest:      opts.Dest,
		Copied:    report.Copied(),
		Skipped:   report.Skipped(),
		Failed:    len(report.Failed()),
		Bytes:     report.Bytes(),
		Files:     Check(opts.Dest, opts.Required),
	}

	logger.Info("copy finished",
		"source", opts.Source,
		"dest", opts.Dest,
		"copied", m.Copied,
		"skipped", m.Skipped,
		"failed", m.Failed,
	)

	if miss := m.Missing(); len(miss) > 0 {
		removeStale(opts.ManifestPath, logger)
		return m, fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(miss, ", "))
	}

	m.Status = StatusOK
	if opts.ManifestPath != "" {
		if err := WriteManifest(opts.ManifestPath, m); err != nil {
			return m, err
		}
	}
	return m, nil
}

func removeStale(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove stale manifest", "path", path, "error", err)
	}
}

// WriteManifest writes m to path atomically.
func WriteManifest(path string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("cannot save nil manifest")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, ManifestVersion)
	}
	return &m, nil
}
