package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

var copyFlags struct {
	source     string
	noManifest bool
}

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Mirror the editor library into the static root",
	Long: `Copies the editor distribution (library.source) into the static root
under library.prefix, preserving its layout. Unchanged files are skipped, so
running copy twice is cheap. A file that cannot be copied is reported and
skipped; the rest of the tree is still mirrored.

After copying, every library.required entry must exist in the destination.
If any is missing, copy exits non-zero and removes any earlier manifest.
Otherwise a JSON manifest is written to library.manifest.`,
	Args: cobra.NoArgs,
	RunE: runCopy,
}

func init() {
	copyCmd.Flags().StringVar(&copyFlags.source, "source", "",
		"Library distribution directory (overrides config)")
	copyCmd.Flags().BoolVar(&copyFlags.noManifest, "no-manifest", false,
		"Do not write the manifest")

	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("source") {
		cfg.Library.Source = copyFlags.source
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := copyOptions(cfg)
	if copyFlags.noManifest {
		opts.ManifestPath = ""
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := mirror.Run(ctx, opts)
	out := cmd.OutOrStdout()
	if m != nil {
		printCopySummary(cmd, cfg, m)
	}
	if errors.Is(err, mirror.ErrMissingRequired) {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, "Required library files are missing:")
		for _, p := range m.Missing() {
			fmt.Fprintf(errOut, "  ✗ %s\n", p)
		}
		fmt.Fprintf(errOut, "\nCheck library.source (%s) and run 'npm install'\n", cfg.Library.Source)
		return err
	}
	if err != nil {
		return err
	}

	if opts.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest written to %s\n", opts.ManifestPath)
	}
	return nil
}

func printCopySummary(cmd *cobra.Command, cfg *config.Config, m *mirror.Manifest) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Copied %d files (%d unchanged, %d failed, %d bytes) to %s\n",
		m.Copied, m.Skipped, m.Failed, m.Bytes, cfg.LibraryDest())
	for _, e := range m.Files {
		mark := "✓"
		if !e.Found {
			mark = "✗"
		}
		fmt.Fprintf(out, "  %s %s\n", mark, e.Path)
	}
}
