package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/server"
	"github.com/albertocavalcante/editorhost/internal/log"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

var serveFlags struct {
	port       int
	host       string
	root       string
	liveReload bool
	noCORS     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the static asset server",
	Long: `Serves the static root with the headers a self-hosted editor needs:

  - .mjs as application/javascript and .wasm as application/wasm
  - cross-origin isolation headers on every response
  - permissive CORS (disable with --no-cors)
  - a one-year cache for versioned assets, no-cache for the default document

Extensionless navigation paths fall back to the default document; a missing
script or wasm file is always a 404. GET /health and GET /debug/files report
liveness and the expected library entries.

The port comes from --port, then PORT, then the config file (default 8080).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0,
		"Port to listen on (overrides PORT and config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "",
		"Interface to bind (default: all)")
	serveCmd.Flags().StringVar(&serveFlags.root, "root", "",
		"Static root directory (overrides config)")
	serveCmd.Flags().BoolVar(&serveFlags.liveReload, "live-reload", false,
		"Reload connected browsers when files under the root change")
	serveCmd.Flags().BoolVar(&serveFlags.noCORS, "no-cors", false,
		"Do not send CORS headers")

	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags layers explicitly set serve flags over the config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = serveFlags.port
	}
	if flags.Changed("host") {
		cfg.Server.Host = serveFlags.host
	}
	if flags.Changed("root") {
		cfg.Server.Root = serveFlags.root
	}
	if flags.Changed("live-reload") {
		v := serveFlags.liveReload
		cfg.Server.LiveReload = &v
	}
	if flags.Changed("no-cors") {
		v := !serveFlags.noCORS
		cfg.Server.CORS = &v
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(serverConfig(cfg))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("serving static root",
		"addr", cfg.Addr(),
		"root", cfg.RootDir(),
		"prefix", cfg.Library.Prefix,
		"live_reload", config.Bool(cfg.Server.LiveReload),
	)
	return srv.ListenAndServe(ctx)
}
