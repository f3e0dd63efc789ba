package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/bundle"
)

var buildFlags struct {
	minify  bool
	outfile string
	target  string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bundle the application entries",
	Long: `Bundles build.entries into a single ES module at build.outfile for the
browser, leaving build.externals unresolved so the import map in the default
document supplies them at runtime. build.static_files are copied next to the
output unchanged.

Minification is enabled by --minify, build.minify or NODE_ENV=production.
Any error (syntax error, unresolved import) fails the build and nothing
else is written.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.minify, "minify", false,
		"Minify the output")
	buildCmd.Flags().StringVarP(&buildFlags.outfile, "outfile", "o", "",
		"Output file (overrides config)")
	buildCmd.Flags().StringVar(&buildFlags.target, "target", "",
		"Language target: es2015..es2022 or esnext (overrides config)")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("outfile") {
		cfg.Build.Outfile = buildFlags.outfile
	}
	if flags.Changed("target") {
		cfg.Build.Target = buildFlags.target
	}
	if flags.Changed("minify") {
		v := buildFlags.minify
		cfg.Build.Minify = &v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, err := bundle.Build(buildDescriptor(cfg))
	var buildErr *bundle.BuildError
	if errors.As(err, &buildErr) {
		for _, msg := range buildErr.Messages {
			fmt.Fprint(cmd.ErrOrStderr(), msg)
		}
		return fmt.Errorf("build failed with %d error(s)", len(buildErr.Messages))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Built %s (%d bytes) in %s\n", res.Outfile, res.Bytes, res.Duration.Round(time.Millisecond))
	if len(res.Externals) > 0 {
		fmt.Fprintf(out, "  externals: %s\n", strings.Join(res.Externals, ", "))
	}
	for _, f := range res.StaticFiles {
		fmt.Fprintf(out, "  copied %s\n", f)
	}
	return nil
}
