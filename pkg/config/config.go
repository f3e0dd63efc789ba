// Package config provides configuration management for editorhost.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/editorhost/config.toml)
//  3. Project config (.editorhost/config.toml or editorhost.toml)
//  4. Environment variables (PORT, EDITORHOST_*)
//  5. CLI flags (highest priority)
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the main configuration struct for editorhost.
type Config struct {
	// Server configures the static asset server.
	Server ServerConfig `toml:"server"`

	// Library describes the third-party editor distribution that is mirrored
	// into the static root.
	Library LibraryConfig `toml:"library"`

	// Build configures the bundler invocation.
	Build BuildConfig `toml:"build"`

	// Dev configures the watch-rebuild-serve loop.
	Dev DevConfig `toml:"dev"`

	// Verify configures the verification runner.
	Verify VerifyConfig `toml:"verify"`

	// Dir is the project directory relative paths are resolved against.
	// It is the directory holding the project config file, or the directory
	// Load was started from when no project file exists.
	Dir string `toml:"-"`
}

// ServerConfig holds static server settings.
type ServerConfig struct {
	// Port is the TCP port to listen on.
	Port int `toml:"port"`

	// Host is the interface to bind. Empty binds all interfaces.
	Host string `toml:"host"`

	// Root is the static root directory.
	Root string `toml:"root"`

	// DefaultDocument is served for extensionless navigation paths.
	DefaultDocument string `toml:"default_document"`

	// CORS enables permissive CORS headers and OPTIONS preflight answers.
	CORS *bool `toml:"cors"`

	// LiveReload injects the live reload client and watches the root.
	LiveReload *bool `toml:"live_reload"`
}

// LibraryConfig describes the mirrored editor distribution.
type LibraryConfig struct {
	// Name is the package name, also the default external module name.
	Name string `toml:"name"`

	// Source is the distribution directory to mirror (usually under node_modules).
	Source string `toml:"source"`

	// Prefix is the URL path prefix the distribution is served under. The
	// mirror destination is Server.Root joined with Prefix.
	Prefix string `toml:"prefix"`

	// Required lists the relative paths that must exist after a copy.
	Required []string `toml:"required"`

	// Exclude lists doublestar patterns skipped while copying.
	Exclude []string `toml:"exclude"`

	// Manifest is where the copy manifest is written.
	Manifest string `toml:"manifest"`
}

// BuildConfig holds bundler settings.
type BuildConfig struct {
	// Entries are the entry scripts.
	Entries []string `toml:"entries"`

	// Outfile is the single bundled output.
	Outfile string `toml:"outfile"`

	// Target is the language level (es2015..es2022, esnext).
	Target string `toml:"target"`

	// Externals are module names left for the browser import map.
	Externals []string `toml:"externals"`

	// Minify forces minification. NODE_ENV=production also enables it.
	Minify *bool `toml:"minify"`

	// StaticFiles are copied unmodified next to Outfile.
	StaticFiles []string `toml:"static_files"`
}

// DevConfig holds watch loop settings.
type DevConfig struct {
	// Watch lists the source directories to watch.
	Watch []string `toml:"watch"`

	// Ignore lists doublestar patterns for paths that never trigger a rebuild.
	Ignore []string `toml:"ignore"`

	// DebounceMS is the event coalescing window in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// RebuildDelayMS is the pause before a queued rebuild starts.
	RebuildDelayMS int `toml:"rebuild_delay_ms"`

	// GracePeriodMS is how long the child server gets between SIGTERM and SIGKILL.
	GracePeriodMS int `toml:"grace_period_ms"`

	// RestartOnRebuild restarts the child server after every successful build.
	RestartOnRebuild *bool `toml:"restart_on_rebuild"`

	// ServerCommand overrides the supervised server process. Empty runs
	// this binary's own serve command.
	ServerCommand []string `toml:"server_command"`
}

// VerifyConfig holds verification runner settings.
type VerifyConfig struct {
	// BaseURL is the running server to probe. Empty derives it from Server.Port.
	BaseURL string `toml:"base_url"`

	// TimeoutMS bounds each HTTP probe.
	TimeoutMS int `toml:"timeout_ms"`

	// SkipHTTP disables the HTTP probes.
	SkipHTTP *bool `toml:"skip_http"`

	// Files are extra files that must exist.
	Files []string `toml:"files"`

	// Optional are files whose absence is only a warning.
	Optional []string `toml:"optional"`

	// Contains are substring checks on config and document files.
	Contains []ContainsCheck `toml:"contains"`
}

// ContainsCheck requires every substring to appear in File.
type ContainsCheck struct {
	File       string   `toml:"file"`
	Substrings []string `toml:"substrings"`
}

// Default values.
const (
	DefaultPort            = 8080
	DefaultRoot            = "public"
	DefaultDocument        = "index.html"
	DefaultLibraryName     = "modern-monaco"
	DefaultManifest        = ".editorhost/manifest.json"
	DefaultTarget          = "es2022"
	DefaultDebounceMS      = 100
	DefaultRebuildDelayMS  = 100
	DefaultGracePeriodMS   = 5000
	DefaultVerifyTimeoutMS = 5000
)

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	falseVal := false
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			Root:            DefaultRoot,
			DefaultDocument: DefaultDocument,
			CORS:            &trueVal,
			LiveReload:      &falseVal,
		},
		Library: LibraryConfig{
			Name:   DefaultLibraryName,
			Source: "node_modules/" + DefaultLibraryName + "/dist",
			Prefix: "/" + DefaultLibraryName,
			Required: []string{
				"index.mjs",
				"lsp/typescript/worker.mjs",
				"onig.wasm",
			},
			Exclude:  []string{"**/*.d.ts"},
			Manifest: DefaultManifest,
		},
		Build: BuildConfig{
			Entries:     []string{"src/main.js"},
			Outfile:     DefaultRoot + "/app.mjs",
			Target:      DefaultTarget,
			Externals:   []string{DefaultLibraryName},
			Minify:      &falseVal,
			StaticFiles: []string{"src/index.html"},
		},
		Dev: DevConfig{
			Watch:            []string{"src"},
			Ignore:           []string{"**/*~", "**/.#*", "**/*.swp"},
			DebounceMS:       DefaultDebounceMS,
			RebuildDelayMS:   DefaultRebuildDelayMS,
			GracePeriodMS:    DefaultGracePeriodMS,
			RestartOnRebuild: &falseVal,
		},
		Verify: VerifyConfig{
			TimeoutMS: DefaultVerifyTimeoutMS,
			SkipHTTP:  &falseVal,
			Contains: []ContainsCheck{
				{File: DefaultRoot + "/" + DefaultDocument, Substrings: []string{`type="importmap"`, DefaultLibraryName}},
			},
		},
	}
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Root != "" {
		c.Server.Root = other.Server.Root
	}
	if other.Server.DefaultDocument != "" {
		c.Server.DefaultDocument = other.Server.DefaultDocument
	}
	if other.Server.CORS != nil {
		c.Server.CORS = other.Server.CORS
	}
	if other.Server.LiveReload != nil {
		c.Server.LiveReload = other.Server.LiveReload
	}

	// Library
	if other.Library.Name != "" {
		c.Library.Name = other.Library.Name
	}
	if other.Library.Source != "" {
		c.Library.Source = other.Library.Source
	}
	if other.Library.Prefix != "" {
		c.Library.Prefix = other.Library.Prefix
	}
	if len(other.Library.Required) > 0 {
		c.Library.Required = other.Library.Required
	}
	if len(other.Library.Exclude) > 0 {
		c.Library.Exclude = other.Library.Exclude
	}
	if other.Library.Manifest != "" {
		c.Library.Manifest = other.Library.Manifest
	}

	// Build
	if len(other.Build.Entries) > 0 {
		c.Build.Entries = other.Build.Entries
	}
	if other.Build.Outfile != "" {
		c.Build.Outfile = other.Build.Outfile
	}
	if other.Build.Target != "" {
		c.Build.Target = other.Build.Target
	}
	if len(other.Build.Externals) > 0 {
		c.Build.Externals = other.Build.Externals
	}
	if other.Build.Minify != nil {
		c.Build.Minify = other.Build.Minify
	}
	if len(other.Build.StaticFiles) > 0 {
		c.Build.StaticFiles = other.Build.StaticFiles
	}

	// Dev
	if len(other.Dev.Watch) > 0 {
		c.Dev.Watch = other.Dev.Watch
	}
	if len(other.Dev.Ignore) > 0 {
		c.Dev.Ignore = other.Dev.Ignore
	}
	if other.Dev.DebounceMS != 0 {
		c.Dev.DebounceMS = other.Dev.DebounceMS
	}
	if other.Dev.RebuildDelayMS != 0 {
		c.Dev.RebuildDelayMS = other.Dev.RebuildDelayMS
	}
	if other.Dev.GracePeriodMS != 0 {
		c.Dev.GracePeriodMS = other.Dev.GracePeriodMS
	}
	if other.Dev.RestartOnRebuild != nil {
		c.Dev.RestartOnRebuild = other.Dev.RestartOnRebuild
	}
	if len(other.Dev.ServerCommand) > 0 {
		c.Dev.ServerCommand = other.Dev.ServerCommand
	}

	// Verify
	if other.Verify.BaseURL != "" {
		c.Verify.BaseURL = other.Verify.BaseURL
	}
	if other.Verify.TimeoutMS != 0 {
		c.Verify.TimeoutMS = other.Verify.TimeoutMS
	}
	if other.Verify.SkipHTTP != nil {
		c.Verify.SkipHTTP = other.Verify.SkipHTTP
	}
	if len(other.Verify.Files) > 0 {
		c.Verify.Files = other.Verify.Files
	}
	if len(other.Verify.Optional) > 0 {
		c.Verify.Optional = other.Verify.Optional
	}
	if len(other.Verify.Contains) > 0 {
		c.Verify.Contains = other.Verify.Contains
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.Root == "" {
		errs = append(errs, errors.New("server.root must not be empty"))
	}
	if c.Server.DefaultDocument == "" {
		errs = append(errs, errors.New("server.default_document must not be empty"))
	}
	if !strings.HasPrefix(c.Library.Prefix, "/") {
		errs = append(errs, fmt.Errorf("library.prefix %q must start with /", c.Library.Prefix))
	}
	if len(c.Build.Entries) == 0 {
		errs = append(errs, errors.New("build.entries must not be empty"))
	}
	if c.Build.Outfile == "" {
		errs = append(errs, errors.New("build.outfile must not be empty"))
	}
	for _, p := range c.Library.Required {
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			errs = append(errs, fmt.Errorf("library.required entry %q must be relative to the library", p))
		}
	}
	return errors.Join(errs...)
}

// Path resolves p against the project directory unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Paths resolves every element with Path.
func (c *Config) Paths(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = c.Path(p)
	}
	return out
}

// Addr returns the listen address for the static server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// RootDir returns the resolved static root.
func (c *Config) RootDir() string {
	return c.Path(c.Server.Root)
}

// LibraryDest returns the directory the library distribution is mirrored into.
func (c *Config) LibraryDest() string {
	return filepath.Join(c.RootDir(), filepath.FromSlash(strings.TrimPrefix(c.Library.Prefix, "/")))
}

// BaseURL returns the verification target, derived from the port when unset.
func (c *Config) BaseURL() string {
	if c.Verify.BaseURL != "" {
		return strings.TrimSuffix(c.Verify.BaseURL, "/")
	}
	return "http://localhost:" + strconv.Itoa(c.Server.Port)
}

// Debounce returns the watch coalescing window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Dev.DebounceMS) * time.Millisecond
}

// RebuildDelay returns the pause before a queued rebuild.
func (c *Config) RebuildDelay() time.Duration {
	return time.Duration(c.Dev.RebuildDelayMS) * time.Millisecond
}

// GracePeriod returns how long a child server may take to exit after SIGTERM.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Dev.GracePeriodMS) * time.Millisecond
}

// VerifyTimeout returns the per-probe timeout.
func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.Verify.TimeoutMS) * time.Millisecond
}

// Bool dereferences an optional flag, treating nil as false.
func Bool(b *bool) bool {
	return b != nil && *b
}
