package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/runner"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

var statusFlags struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last library copy and whether dev is running",
	Long: `Shows the manifest written by the last successful 'editorhost copy':
when it ran, what it copied and whether each required entry was found.
Also reports whether an 'editorhost dev' loop is running for this project.

The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for editorhost status.
type StatusOutput struct {
	Manifest *mirror.Manifest `json:"manifest,omitempty"`
	Missing  []string         `json:"missing,omitempty"`
	Dev      runner.PIDStatus `json:"dev"`
	Error    string           `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	output := StatusOutput{
		Dev: runner.PIDFile{Path: filepath.Join(cfg.Dir, config.ConfigDirName, devPIDName)}.Status(),
	}

	manifestPath := cfg.Path(cfg.Library.Manifest)
	m, err := mirror.ReadManifest(manifestPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		output.Error = "no manifest found"
	case err != nil:
		output.Error = err.Error()
	default:
		output.Manifest = m
		output.Missing = m.Missing()
	}

	if statusFlags.json {
		return outputJSON(out, output)
	}

	printDevStatus(out, output.Dev)

	if output.Manifest == nil {
		if output.Error == "no manifest found" {
			fmt.Fprintln(out, "No manifest found. Run 'editorhost copy' to mirror the library.")
			return nil
		}
		return fmt.Errorf("failed to read manifest %s: %s", manifestPath, output.Error)
	}

	fmt.Fprintf(out, "Last copy: %s (%s ago)\n",
		m.Timestamp.Local().Format(time.DateTime), time.Since(m.Timestamp).Round(time.Second))
	fmt.Fprintf(out, "  source: %s\n  dest:   %s\n", m.Source, m.Dest)
	fmt.Fprintf(out, "  %d copied, %d unchanged, %d failed, %d bytes\n", m.Copied, m.Skipped, m.Failed, m.Bytes)
	fmt.Fprintf(out, "\nRequired entries (%d):\n", len(m.Files))
	for _, e := range m.Files {
		mark := "✓"
		if !e.Found {
			mark = "✗"
		}
		fmt.Fprintf(out, "  %s %s\n", mark, e.Path)
	}
	return nil
}

func printDevStatus(out io.Writer, st runner.PIDStatus) {
	switch {
	case st.Running:
		fmt.Fprintf(out, "Dev loop: running (pid %d)\n", st.PID)
	case st.Stale:
		fmt.Fprintf(out, "Dev loop: not running (stale PID file for pid %d)\n", st.PID)
	default:
		fmt.Fprintln(out, "Dev loop: not running")
	}
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
