package cli

import (
	"context"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/verify"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

var verifyFlags struct {
	skipHTTP bool
	baseURL  string
	timeout  time.Duration
	json     bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit files, manifest and a running server",
	Long: `Runs an ordered set of checks and prints a pass/warn/fail summary:

  1. the default document, the bundle and every library.required entry exist
     under the static root, plus verify.files (verify.optional only warns)
  2. verify.contains substrings are present
  3. the copy manifest exists, has status ok and lists every required entry
  4. HTTP probes against a running server (skip with --skip-http):
     /health, /debug/files, <prefix>/index.mjs and /nonexistent.mjs (404)

No check stops the ones after it and nothing is retried. The exit status is
1 when any check failed and 0 otherwise; warnings do not fail.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyFlags.skipHTTP, "skip-http", false,
		"Skip the HTTP probes")
	verifyCmd.Flags().StringVar(&verifyFlags.baseURL, "base-url", "",
		"Server to probe (default: http://localhost:<port>)")
	verifyCmd.Flags().DurationVar(&verifyFlags.timeout, "timeout", 0,
		"Timeout per HTTP probe (default: verify.timeout_ms)")
	verifyCmd.Flags().BoolVar(&verifyFlags.json, "json", false,
		"Output results as JSON")

	rootCmd.AddCommand(verifyCmd)
}

// verifyRunner maps the loaded configuration onto the verification checks.
// Paths stay relative to the project directory so messages read naturally.
func verifyRunner(cfg *config.Config) *verify.Runner {
	root := cfg.Server.Root
	libDir := path.Join(root, strings.TrimPrefix(cfg.Library.Prefix, "/"))

	files := []string{
		path.Join(root, cfg.Server.DefaultDocument),
		cfg.Build.Outfile,
	}
	for _, req := range cfg.Library.Required {
		files = append(files, path.Join(libDir, req))
	}
	files = append(files, cfg.Verify.Files...)

	contains := make([]verify.ContainsCheck, 0, len(cfg.Verify.Contains))
	for _, c := range cfg.Verify.Contains {
		contains = append(contains, verify.ContainsCheck{File: c.File, Substrings: c.Substrings})
	}

	return &verify.Runner{
		Root:         cfg.Dir,
		Files:        files,
		Optional:     cfg.Verify.Optional,
		Contains:     contains,
		ManifestPath: cfg.Library.Manifest,
		Required:     cfg.Library.Required,
		Probes:       verify.DefaultProbes(cfg.Library.Prefix),
		BaseURL:      cfg.BaseURL(),
		Timeout:      cfg.VerifyTimeout(),
		SkipHTTP:     config.Bool(cfg.Verify.SkipHTTP),
	}
}

// VerifyOutput is the JSON output format for editorhost verify.
type VerifyOutput struct {
	Passed   int             `json:"passed"`
	Warnings int             `json:"warnings"`
	Failed   int             `json:"failed"`
	Results  []verify.Result `json:"results"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("skip-http") {
		v := verifyFlags.skipHTTP
		cfg.Verify.SkipHTTP = &v
	}
	if flags.Changed("base-url") {
		cfg.Verify.BaseURL = verifyFlags.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Verify.TimeoutMS = int(verifyFlags.timeout.Milliseconds())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary := verifyRunner(cfg).Run(ctx)

	if verifyFlags.json {
		if err := outputJSON(cmd.OutOrStdout(), VerifyOutput{
			Passed:   summary.Count(verify.LevelPass),
			Warnings: summary.Count(verify.LevelWarn),
			Failed:   summary.Count(verify.LevelFail),
			Results:  summary.Results,
		}); err != nil {
			return err
		}
	} else {
		summary.Print(cmd.OutOrStdout())
	}

	if code := summary.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
