package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// isolateEnv clears every variable the loader reads so the host
// environment cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{
		"PORT", "EDITORHOST_PORT", "EDITORHOST_ROOT", "EDITORHOST_LIBRARY_SOURCE",
		"EDITORHOST_EXTERNALS", "EDITORHOST_VERIFY_BASE_URL", "EDITORHOST_CORS",
		"EDITORHOST_LIVE_RELOAD", "EDITORHOST_MINIFY", "EDITORHOST_SKIP_HTTP",
	} {
		t.Setenv(name, "")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("default port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if !Bool(cfg.Server.CORS) {
		t.Error("cors should be enabled by default")
	}
	if Bool(cfg.Server.LiveReload) {
		t.Error("live reload should be disabled by default")
	}

	wantRequired := []string{"index.mjs", "lsp/typescript/worker.mjs", "onig.wasm"}
	if diff := cmp.Diff(wantRequired, cfg.Library.Required); diff != "" {
		t.Errorf("default required entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{DefaultLibraryName}, cfg.Build.Externals); diff != "" {
		t.Errorf("default externals mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	cfg := NewConfig()
	falseVal := false

	other := &Config{
		Server:  ServerConfig{Port: 9000, CORS: &falseVal},
		Library: LibraryConfig{Required: []string{"editor.mjs"}},
		Build:   BuildConfig{Externals: []string{"monaco-editor", "vscode"}},
		Dev:     DevConfig{Ignore: []string{"**/*.tmp"}, GracePeriodMS: 250},
	}
	cfg.Merge(other)

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if Bool(cfg.Server.CORS) {
		t.Error("cors should be disabled after merge")
	}
	if cfg.Server.Root != DefaultRoot {
		t.Errorf("root should keep default, got %q", cfg.Server.Root)
	}
	if diff := cmp.Diff([]string{"editor.mjs"}, cfg.Library.Required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"monaco-editor", "vscode"}, cfg.Build.Externals); diff != "" {
		t.Errorf("externals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"**/*.tmp"}, cfg.Dev.Ignore); diff != "" {
		t.Errorf("ignore mismatch (-want +got):\n%s", diff)
	}
	if cfg.GracePeriod() != 250*time.Millisecond {
		t.Errorf("grace period = %v, want 250ms", cfg.GracePeriod())
	}

	cfg.Merge(nil) // must not panic
}

func TestMerge_DefaultsFromFileDoNotDuplicate(t *testing.T) {
	cfg := NewConfig()
	cfg.Merge(NewConfig())

	want := NewConfig()
	if diff := cmp.Diff(want.Dev.Ignore, cfg.Dev.Ignore); diff != "" {
		t.Errorf("ignore mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("merging the defaults into themselves changed the config (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty root", func(c *Config) { c.Server.Root = "" }, "server.root"},
		{"prefix without slash", func(c *Config) { c.Library.Prefix = "lib" }, "library.prefix"},
		{"no entries", func(c *Config) { c.Build.Entries = nil }, "build.entries"},
		{"escaping required", func(c *Config) { c.Library.Required = []string{"../x.mjs"} }, "library.required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "editorhost.toml")

	content := `
[server]
port = 3000
root = "www"
cors = false

[library]
source = "vendor/editor/dist"
prefix = "/editor"
required = ["editor.mjs", "workers/ts.mjs"]

[build]
entries = ["app/main.ts"]
externals = ["editor"]

[dev]
debounce_ms = 50

[[verify.contains]]
file = "www/index.html"
substrings = ["importmap", "editor"]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		t.Fatalf("loadConfigFile() error = %v", err)
	}
	if cfg == nil {
		t.Fatal("loadConfigFile() returned nil")
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.CORS == nil || *cfg.Server.CORS {
		t.Error("cors should be explicitly false")
	}
	if cfg.Library.Prefix != "/editor" {
		t.Errorf("prefix = %q, want /editor", cfg.Library.Prefix)
	}
	if cfg.Dev.DebounceMS != 50 {
		t.Errorf("debounce = %d, want 50", cfg.Dev.DebounceMS)
	}
	want := []ContainsCheck{{File: "www/index.html", Substrings: []string{"importmap", "editor"}}}
	if diff := cmp.Diff(want, cfg.Verify.Contains); diff != "" {
		t.Errorf("contains mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	cfg, err := loadConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil || cfg != nil {
		t.Fatalf("loadConfigFile(missing) = %v, %v; want nil, nil", cfg, err)
	}
}

func TestLoadConfigFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editorhost.toml")
	if err := os.WriteFile(path, []byte("[server\nport = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfigFile(path); err == nil {
		t.Fatal("expected parse error for malformed TOML")
	}
}

func TestApplyEnvironmentVariables(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORT", "4321")
	t.Setenv("EDITORHOST_EXTERNALS", "a, b ,c")
	t.Setenv("EDITORHOST_MINIFY", "yes")
	t.Setenv("EDITORHOST_CORS", "0")

	cfg := NewConfig()
	applyEnvironmentVariables(cfg)

	if cfg.Server.Port != 4321 {
		t.Errorf("port = %d, want 4321", cfg.Server.Port)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, cfg.Build.Externals); diff != "" {
		t.Errorf("externals mismatch (-want +got):\n%s", diff)
	}
	if !Bool(cfg.Build.Minify) {
		t.Error("minify should be enabled by EDITORHOST_MINIFY=yes")
	}
	if Bool(cfg.Server.CORS) {
		t.Error("cors should be disabled by EDITORHOST_CORS=0")
	}
}

func TestApplyEnvironmentVariables_PortFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg := NewConfig()
	applyEnvironmentVariables(cfg)

	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want default %d for invalid PORT", cfg.Server.Port, DefaultPort)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b", []string{"a", "b"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.expected, splitAndTrim(tt.input)); diff != "" {
			t.Errorf("splitAndTrim(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestProjectConfigSearch(t *testing.T) {
	isolateEnv(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, ConfigDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ConfigDirName, "config.toml"), []byte("[server]\nport = 7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(nested)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000 from project config", cfg.Server.Port)
	}
	if cfg.Dir != root {
		t.Errorf("Dir = %q, want project root %q", cfg.Dir, root)
	}
	if got, want := cfg.RootDir(), filepath.Join(root, DefaultRoot); got != want {
		t.Errorf("RootDir() = %q, want %q", got, want)
	}
}

func TestProjectConfigSearch_StopsAtProjectRoot(t *testing.T) {
	isolateEnv(t)

	outer := t.TempDir()
	if err := os.WriteFile(filepath.Join(outer, ConfigFileName), []byte("[server]\nport = 1111\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inner := filepath.Join(outer, "app")
	if err := os.MkdirAll(filepath.Join(inner, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(inner)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d; search should stop at the .git root", cfg.Server.Port)
	}
	if cfg.Dir != inner {
		t.Errorf("Dir = %q, want %q", cfg.Dir, inner)
	}
}

func TestLoadFile(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[library]\nprefix = \"/vendor/editor\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	want := filepath.Join(dir, DefaultRoot, "vendor", "editor")
	if got := cfg.LibraryDest(); got != want {
		t.Errorf("LibraryDest() = %q, want %q", got, want)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := NewConfig()
	data, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(string(data), "[server]") {
		t.Errorf("encoded config missing [server] table:\n%s", data)
	}

	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	decoded, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("decode encoded config: %v", err)
	}
	if diff := cmp.Diff(cfg.Library, decoded.Library); diff != "" {
		t.Errorf("library section changed after round trip (-want +got):\n%s", diff)
	}
}

func TestBaseURL(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Port = 9999
	if got := cfg.BaseURL(); got != "http://localhost:9999" {
		t.Errorf("BaseURL() = %q", got)
	}
	cfg.Verify.BaseURL = "http://example.test:81/"
	if got := cfg.BaseURL(); got != "http://example.test:81" {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", got)
	}
}
