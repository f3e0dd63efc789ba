// Package mirror copies a third-party distribution directory into the
// static root and records what was copied.
//
// Copying is idempotent: files whose size and content hash already match are
// left alone. A failure on one file is recorded and the walk continues; only
// an unreadable source root aborts the copy.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/albertocavalcante/editorhost/internal/log"
)

// ErrSourceMissing is returned when the source directory does not exist.
var ErrSourceMissing = errors.New("source directory missing")

// CopyOptions tunes CopyTree.
type CopyOptions struct {
	// Exclude lists doublestar patterns, matched against slash-separated
	// paths relative to the source root.
	Exclude []string

	// Logger receives per-file failures. Nil uses the "mirror" component logger.
	Logger *slog.Logger
}

// FileResult is the outcome of copying one file.
type FileResult struct {
	Path    string // relative to the source root, slash-separated
	Bytes   int64
	Skipped bool // destination already identical
	Err     error
}

// Report aggregates the per-file results of one CopyTree call.
type Report struct {
	Source string
	Dest   string
	Files  []FileResult
}

// Copied returns the number of files written.
func (r *Report) Copied() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil && !f.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the number of files left untouched because they matched.
func (r *Report) Skipped() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil && f.Skipped {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Bytes returns the total number of bytes written.
func (r *Report) Bytes() int64 {
	var n int64
	for _, f := range r.Files {
		if f.Err == nil && !f.Skipped {
			n += f.Bytes
		}
	}
	return n
}

// Err joins every per-file error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// CopyTree mirrors every regular file under src into dst, creating
// directories as needed and preserving file modes.
func CopyTree(ctx context.Context, src, dst string, opts CopyOptions) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("mirror")
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", src)
	}

	report := &Report{Source: src, Dest: dst}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)

		if walkErr != nil {
			if path == src {
				return walkErr
			}
			logger.Warn("skipping unreadable path", "path", relSlash, "error", walkErr)
			report.Files = append(report.Files, FileResult{Path: relSlash, Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if rel != "." && excluded(opts.Exclude, relSlash) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				// Children will fail individually and be reported.
				logger.Warn("failed to create directory", "path", relSlash, "error", err)
			}
			return nil
		}

		result := copyFile(path, target, relSlash)
		if result.Err != nil {
			logger.Warn("failed to copy file", "path", relSlash, "error", result.Err)
		} else {
			logger.Log(ctx, log.LevelTrace, "copied", "path", relSlash, "bytes", result.Bytes, "skipped", result.Skipped)
		}
		report.Files = append(report.Files, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", src, err)
	}

	return report, nil
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// CopyFile copies a single file with the same skip-if-identical behavior
// as CopyTree.
func CopyFile(src, dst string) FileResult {
	return copyFile(src, dst, filepath.Base(src))
}

// copyFile copies one file through a temporary sibling and a rename, so a
// server reading dst never observes a partial write.
func copyFile(src, dst, rel string) FileResult {
	result := FileResult{Path: rel}

	// Stat follows symlinks, so linked files inside a package are copied.
	info, err := os.Stat(src)
	if err != nil {
		result.Err = err
		return result
	}
	if !info.Mode().IsRegular() {
		result.Err = fmt.Errorf("not a regular file (%s)", info.Mode().Type())
		return result
	}
	result.Bytes = info.Size()

	same, err := sameContent(src, info, dst)
	if err != nil {
		result.Err = err
		return result
	}
	if same {
		result.Skipped = true
		return result
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		result.Err = err
		return result
	}

	in, err := os.Open(src)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		result.Err = err
		return result
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		cleanup()
		result.Err = err
		return result
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		cleanup()
		result.Err = err
		return result
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		result.Err = err
		return result
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		result.Err = err
		return result
	}

	return result
}
