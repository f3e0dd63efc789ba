package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/filekind"
	"github.com/albertocavalcante/editorhost/internal/log"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")

// Config configures the watcher.
type Config struct {
	// Roots are the source directories to watch recursively.
	Roots []string

	// Base is the directory reported paths are relative to. Empty reports
	// absolute paths.
	Base string

	// Extensions limits which files count as changes (nil = filekind.SourceExtensions).
	Extensions []string

	// Ignore lists doublestar patterns matched against paths relative to
	// the containing root.
	Ignore []string

	// IgnoreDirs adds directory name prefixes to filekind.IgnoredDirs.
	IgnoreDirs []string

	// ExcludePaths are directories never watched, such as the build output.
	ExcludePaths []string

	Debounce time.Duration
	Logger   *Logger

	// OnChange receives each debounced batch of changed paths.
	OnChange func(paths []string)
}

// Watcher watches source directories and reports debounced changes.
type Watcher struct {
	config     Config
	roots      []string
	exclude    []string
	fsWatcher  *fsnotify.Watcher
	debouncer  *Debouncer
	logger     *Logger
	trace      *slog.Logger
	extensions map[string]bool
	ignoreDirs map[string]bool
}

// New creates a new watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no directories to watch")
	}
	for _, pattern := range cfg.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", r, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", r, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("cannot watch %s: not a directory", r)
		}
		roots = append(roots, abs)
	}

	exclude := make([]string, 0, len(cfg.ExcludePaths))
	for _, p := range cfg.ExcludePaths {
		if abs, err := filepath.Abs(p); err == nil {
			exclude = append(exclude, abs)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	exts := cfg.Extensions
	if exts == nil {
		exts = filekind.SourceExtensions
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NewLogger(LoggerConfig{})
	}

	return &Watcher{
		config:     cfg,
		roots:      roots,
		exclude:    exclude,
		fsWatcher:  fsWatcher,
		logger:     logger,
		trace:      log.Component("watch"),
		extensions: filekind.ExtensionSet(exts),
		ignoreDirs: filekind.IgnoreDirSet(cfg.IgnoreDirs),
	}, nil
}

// Run starts the watch loop. It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, w.handleChanged)
	defer w.debouncer.Stop()

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	w.logger.Ready(len(w.fsWatcher.WatchList()), w.displayRoots())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

func (w *Watcher) displayRoots() []string {
	out := make([]string, len(w.roots))
	for i, r := range w.roots {
		out[i] = w.display(r)
	}
	return out
}

// display renders an absolute path relative to Config.Base when possible.
func (w *Watcher) display(path string) string {
	if w.config.Base == "" {
		return path
	}
	if rel, err := filepath.Rel(w.config.Base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func (w *Watcher) ignoredDirName(name string) bool {
	for prefix := range w.ignoreDirs {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// relToRoot returns path relative to the watched root containing it.
func (w *Watcher) relToRoot(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

func (w *Watcher) ignoredGlob(path string) bool {
	rel, ok := w.relToRoot(path)
	if !ok {
		return false
	}
	for _, pattern := range w.config.Ignore {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}

// addRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				w.logger.Debugf("permission denied: %s", path)
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && (w.ignoredDirName(d.Name()) || w.ignoredGlob(path)) {
			return filepath.SkipDir
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", ErrWatchLimitReached, path, err)
			}
			w.logger.Debugf("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// changeType maps an fsnotify operation to a change kind. Chmod-only
// events report false.
func changeType(event fsnotify.Event) (ChangeType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return ChangeAdded, true
	case event.Has(fsnotify.Write):
		return ChangeModified, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return ChangeDeleted, true
	default:
		return "", false
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	w.trace.Log(context.Background(), log.LevelTrace, "fs event", "path", path, "op", event.Op.String())

	if w.excluded(path) {
		return
	}

	// New directories are watched; a renamed directory arrives as a
	// Create at its new location.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.ignoredDirName(filepath.Base(path)) || w.ignoredGlob(path) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
			return
		}
	}

	if !w.extensions[filekind.Ext(path)] || w.ignoredGlob(path) {
		return
	}

	change, ok := changeType(event)
	if !ok {
		return
	}

	shown := w.display(path)
	w.logger.FileChanged(shown, change)
	w.debouncer.Add(shown)
}

func (w *Watcher) handleChanged(paths []string) {
	if w.config.OnChange != nil {
		w.config.OnChange(paths)
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
