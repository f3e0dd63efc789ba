// Package cli implements the editorhost command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/internal/log"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to all commands
var globalFlags struct {
	verbosity int
	logFormat string
	config    string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "editorhost",
	Short: "Self-host a browser code editor behind a static server",
	Long: `Editorhost mirrors a third-party editor distribution into a static root,
bundles your application against it, serves the result with the headers
module workers and wasm grammars need, and verifies the setup.

  editorhost copy     mirror the editor library and write a manifest
  editorhost build    bundle the application entries
  editorhost serve    run the static asset server
  editorhost dev      copy, then rebuild on change while serving
  editorhost verify   audit files, manifest and a running server`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// Default behavior: show help
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "editorhost %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Global flags (persistent across all commands)
	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 1,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json); EDITORHOST_LOG_FORMAT sets the default")
	rootCmd.PersistentFlags().StringVar(&globalFlags.config, "config", "",
		"Config file (default: search for editorhost.toml); EDITORHOST_CONFIG sets the default")

	// Hook to apply flags before command runs
	cobra.OnInitialize(initLogging)
}

// initLogging applies CLI flags to the logger.
// This runs after flags are parsed but before command execution.
func initLogging() {
	raw := globalFlags.logFormat
	if !rootCmd.PersistentFlags().Changed("log-format") {
		if env := os.Getenv("EDITORHOST_LOG_FORMAT"); env != "" {
			raw = env
		}
	}
	format, err := log.ParseFormat(raw)
	log.Init(log.Options{Verbosity: globalFlags.verbosity, Format: format})
	if err != nil {
		log.Warn("using text logs", "error", err)
	}
}

// loadConfig loads the layered configuration. An explicit --config or
// EDITORHOST_CONFIG replaces the project file search.
func loadConfig() (*config.Config, error) {
	path := globalFlags.config
	if path == "" {
		path = os.Getenv("EDITORHOST_CONFIG")
	}

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExitError carries a specific exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command.
func Execute() {
	// A .env file is optional and never overrides the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "editorhost: ignoring .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}
