// Package bundle turns the application entry scripts into one ES module
// using esbuild's Go API.
//
// The editor library is left external so the browser resolves it through
// the import map written in the default document.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/internal/log"
	"github.com/albertocavalcante/editorhost/pkg/util"
)

// ErrNoEntries is returned when a descriptor names no entry scripts.
var ErrNoEntries = errors.New("no entry points configured")

// Descriptor is everything one bundler invocation needs.
type Descriptor struct {
	Entries     []string
	Outfile     string
	Target      string // es2015..es2022 or esnext
	Minify      bool
	Externals   []string
	StaticFiles []string // copied next to Outfile after a successful build
	WorkDir     string   // relative paths resolve here; empty means cwd
}

// Result describes a successful build.
type Result struct {
	Outfile     string
	Bytes       int64
	Externals   []string // external modules the output actually imports
	StaticFiles []string
	Warnings    []string
	Duration    time.Duration
}

// BuildError carries the formatted esbuild diagnostics of a failed build.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed with %d error(s):\n%s",
		len(e.Messages), strings.TrimRight(strings.Join(e.Messages, ""), "\n"))
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name to the esbuild constant. Empty means es2022.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2022, nil
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown target %q", name)
	}
	return t, nil
}

// MinifyFromEnv reports whether NODE_ENV asks for a production build.
func MinifyFromEnv() bool {
	return os.Getenv("NODE_ENV") == "production"
}

// Build runs esbuild once. On a bundler error or a missing static file
// nothing is written: esbuild output is kept in memory until the static
// files have been checked.
func Build(d Descriptor) (*Result, error) {
	return build(d, log.Component("bundle"))
}

func build(d Descriptor, logger *slog.Logger) (*Result, error) {
	if len(d.Entries) == 0 {
		return nil, ErrNoEntries
	}
	if d.Outfile == "" {
		return nil, errors.New("no outfile configured")
	}

	target, err := ParseTarget(d.Target)
	if err != nil {
		return nil, err
	}

	workDir := d.WorkDir
	if workDir == "" {
		workDir = "."
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	start := time.Now()
	res := api.Build(api.BuildOptions{
		EntryPoints:       d.Entries,
		Bundle:            true,
		Outfile:           d.Outfile,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            target,
		MinifyWhitespace:  d.Minify,
		MinifyIdentifiers: d.Minify,
		MinifySyntax:      d.Minify,
		External:          d.Externals,
		Write:             false,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		AbsWorkingDir:     workDir,
	})

	if len(res.Errors) > 0 {
		return nil, &BuildError{Messages: api.FormatMessages(res.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})}
	}

	result := &Result{
		Outfile:  absIn(workDir, d.Outfile),
		Duration: time.Since(start),
		Warnings: api.FormatMessages(res.Warnings, api.FormatMessagesOptions{
			Kind: api.WarningMessage,
		}),
	}
	for _, w := range result.Warnings {
		logger.Warn("bundler warning", "message", strings.TrimSpace(w))
	}

	// A missing static file fails the build before anything is written.
	statics := make([]string, 0, len(d.StaticFiles))
	for _, static := range d.StaticFiles {
		src := absIn(workDir, static)
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("static file %s: %w", static, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("static file %s is not a regular file", static)
		}
		statics = append(statics, src)
	}

	for _, out := range res.OutputFiles {
		if err := writeOutput(out.Path, out.Contents); err != nil {
			return nil, err
		}
		if out.Path == result.Outfile {
			result.Bytes = int64(len(out.Contents))
		}
	}
	if result.Bytes == 0 {
		if info, err := os.Stat(result.Outfile); err == nil {
			result.Bytes = info.Size()
		}
	}

	externals, err := ExternalImports(res.Metafile)
	if err != nil {
		logger.Debug("could not read metafile", "error", err)
	}
	result.Externals = externals

	outDir := filepath.Dir(result.Outfile)
	// A copy can still fail here (disk full, permissions) after the bundle
	// was written; the error is returned and the caller treats the build as
	// failed.
	for _, src := range statics {
		dst := filepath.Join(outDir, filepath.Base(src))
		if r := mirror.CopyFile(src, dst); r.Err != nil {
			return result, fmt.Errorf("failed to copy static file %s: %w", src, r.Err)
		}
		result.StaticFiles = append(result.StaticFiles, dst)
	}

	logger.Info("bundle written",
		"outfile", result.Outfile,
		"bytes", result.Bytes,
		"externals", result.Externals,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// writeOutput replaces path through a temp file in the same directory, so
// a running server never reads a half-written bundle.
func writeOutput(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func absIn(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Metafile is the subset of the esbuild metafile editorhost reads.
type Metafile struct {
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileOutput represents an output file in the metafile.
type MetafileOutput struct {
	Bytes      int              `json:"bytes"`
	Imports    []MetafileImport `json:"imports"`
	EntryPoint string           `json:"entryPoint,omitempty"`
}

// MetafileImport represents an import in the metafile.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// ExternalImports returns the sorted, de-duplicated external module paths
// imported by any output in an esbuild metafile.
func ExternalImports(metafile string) ([]string, error) {
	if metafile == "" {
		return nil, nil
	}
	var meta Metafile
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	seen := make(map[string]bool)
	for _, out := range meta.Outputs {
		for _, imp := range out.Imports {
			if imp.External {
				seen[imp.Path] = true
			}
		}
	}

	return util.SortedKeys(seen), nil
}
