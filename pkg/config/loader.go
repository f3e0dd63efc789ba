package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "editorhost.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".editorhost"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "editorhost"

// Load loads configuration from all layers starting at the working directory.
//
// CLI flags are applied separately after Load() returns.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory:
//  1. Built-in defaults
//  2. Global user config
//  3. Project config found by searching dir and its parents
//  4. Environment variables
//
// A malformed project file is an error; a malformed global file is ignored.
func LoadFrom(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.Dir = dir

	// Layer 2: Global user config
	if globalCfg, err := loadConfigFile(GetGlobalConfigPath()); err == nil && globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	path, projectCfg, err := loadProjectConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	if projectCfg != nil {
		cfg.Merge(projectCfg)
		cfg.Dir = projectDir(path)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg, nil
}

// LoadFile loads defaults, then exactly the given project file, then the
// environment. Used for an explicit --config flag.
func LoadFile(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fileCfg, err := loadConfigFile(abs)
	if err != nil {
		return nil, err
	}
	if fileCfg == nil {
		return nil, fmt.Errorf("config file %s: %w", abs, os.ErrNotExist)
	}

	cfg := NewConfig()
	cfg.Merge(fileCfg)
	cfg.Dir = projectDir(abs)
	applyEnvironmentVariables(cfg)
	return cfg, nil
}

// projectDir maps a config file path to the project directory it describes.
// .editorhost/config.toml belongs to the parent of .editorhost.
func projectDir(configPath string) string {
	dir := filepath.Dir(configPath)
	if filepath.Base(dir) == ConfigDirName {
		return filepath.Dir(dir)
	}
	return dir
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) (string, *Config, error) {
	current := dir
	for {
		for _, candidate := range GetProjectConfigPaths(current) {
			cfg, err := loadConfigFile(candidate)
			if err != nil {
				return "", nil, err
			}
			if cfg != nil {
				return candidate, cfg, nil
			}
		}

		// Stop at filesystem root or project root
		if isProjectRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", nil, nil
}

// isProjectRoot checks if the directory is a project root (has .git, package.json or go.mod).
func isProjectRoot(dir string) bool {
	markers := []string{".git", "package.json", "go.mod"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file. A missing file
// returns (nil, nil).
func loadConfigFile(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// applyEnvironmentVariables applies PORT and EDITORHOST_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	// PORT wins over EDITORHOST_PORT so platform-assigned ports are honored.
	for _, name := range []string{"EDITORHOST_PORT", "PORT"} {
		if v := os.Getenv(name); v != "" {
			if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				cfg.Server.Port = port
			}
		}
	}

	if v := os.Getenv("EDITORHOST_ROOT"); v != "" {
		cfg.Server.Root = v
	}
	if v := os.Getenv("EDITORHOST_LIBRARY_SOURCE"); v != "" {
		cfg.Library.Source = v
	}
	if v := os.Getenv("EDITORHOST_EXTERNALS"); v != "" {
		cfg.Build.Externals = splitAndTrim(v)
	}
	if v := os.Getenv("EDITORHOST_VERIFY_BASE_URL"); v != "" {
		cfg.Verify.BaseURL = v
	}

	applyBoolEnv("EDITORHOST_CORS", &cfg.Server.CORS)
	applyBoolEnv("EDITORHOST_LIVE_RELOAD", &cfg.Server.LiveReload)
	applyBoolEnv("EDITORHOST_MINIFY", &cfg.Build.Minify)
	applyBoolEnv("EDITORHOST_SKIP_HTTP", &cfg.Verify.SkipHTTP)
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, GlobalConfigDir, "config.toml")
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}

// Encode renders cfg as TOML, used by `init` to write a starter file.
func Encode(cfg *Config) ([]byte, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return []byte(sb.String()), nil
}
