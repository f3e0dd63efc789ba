package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/bundle"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/devloop"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/runner"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/watch"
	"github.com/albertocavalcante/editorhost/internal/log"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

// devPIDName is the PID file dev keeps in the project config directory.
const devPIDName = "dev.pid"

var devFlags struct {
	noServer bool
	restart  bool
	verbose  bool
	json     bool
	noColor  bool
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Copy, then rebuild on change while serving",
	Long: `Runs the development loop:

  1. mirrors the editor library once (fails if required files are missing)
  2. starts the static server as a child process
  3. builds, then watches dev.watch and rebuilds on every change

Changes that arrive during a build are coalesced into exactly one more
build, so at most one build runs at a time and the last change is always
built. A failed build is reported and the loop keeps watching.

If the server exits on its own it is reported and started again after the
next successful build. With --restart (dev.restart_on_rebuild) it is
restarted after every successful build.

Ctrl+C stops the watcher, asks the server to exit and kills it if it has
not exited within dev.grace_period_ms.

Example output:

  $ editorhost dev

  editorhost: watching 3 directories in src
  editorhost: ready
  [14:32:15] server running at http://localhost:8080 (pid 48121)
  [14:32:15] rebuilding...
  [14:32:15] ✓ rebuilt in 41ms
  [14:32:20] ~ src/main.js`,
	Args: cobra.NoArgs,
	RunE: runDev,
}

func init() {
	devCmd.Flags().BoolVar(&devFlags.noServer, "no-server", false,
		"Only rebuild; do not run the static server")
	devCmd.Flags().BoolVar(&devFlags.restart, "restart", false,
		"Restart the server after every successful build")
	devCmd.Flags().BoolVar(&devFlags.verbose, "verbose", false,
		"Show file-level changes")
	devCmd.Flags().BoolVar(&devFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	devCmd.Flags().BoolVar(&devFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(devCmd)
}

// childCommand returns the server process dev supervises: the configured
// command, or this binary's own serve command with the same global flags.
func childCommand(cfg *config.Config) (string, []string, error) {
	if len(cfg.Dev.ServerCommand) > 0 {
		return cfg.Dev.ServerCommand[0], cfg.Dev.ServerCommand[1:], nil
	}

	args := []string{
		"serve",
		"--verbosity", strconv.Itoa(globalFlags.verbosity),
		"--log-format", globalFlags.logFormat,
	}
	if globalFlags.config != "" {
		abs, err := filepath.Abs(globalFlags.config)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return runner.SelfCommand("", args...)
}

// devSession wires one run of the dev loop together.
type devSession struct {
	cfg     *config.Config
	out     *watch.Logger
	child   *runner.Process // nil with --no-server
	restart bool
}

// onBuildSuccess starts a child that is not running and, when asked to,
// restarts one that is.
func (s *devSession) onBuildSuccess(ctx context.Context, id string) {
	if s.child == nil || ctx.Err() != nil {
		return
	}

	switch {
	case !s.child.Running():
		if err := s.child.Start(); err != nil {
			s.out.Error(err)
			return
		}
	case s.restart:
		s.out.ServerRestarting()
		if err := s.child.Restart(); err != nil {
			s.out.Error(err)
			return
		}
	default:
		return
	}
	s.out.ServerStarted(s.child.Pid(), s.url())
}

func (s *devSession) url() string {
	return "http://localhost:" + strconv.Itoa(s.cfg.Server.Port)
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("restart") {
		v := devFlags.restart
		cfg.Dev.RestartOnRebuild = &v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pidFile := runner.PIDFile{Path: filepath.Join(cfg.Dir, config.ConfigDirName, devPIDName)}
	if st := pidFile.Status(); st.Running && st.PID != os.Getpid() {
		return fmt.Errorf("dev is already running for %s (pid %d)", cfg.Dir, st.PID)
	}
	if err := pidFile.Write(os.Getpid()); err != nil {
		log.Warn("could not write PID file", "path", pidFile.Path, "error", err)
	}
	defer func() { _ = pidFile.Remove() }()

	out := watch.NewLogger(watch.LoggerConfig{
		Writer:  cmd.OutOrStdout(),
		Verbose: devFlags.verbose,
		NoColor: devFlags.noColor,
		JSON:    devFlags.json,
	})

	// The library is mirrored once; a missing required file is fatal.
	if _, err := mirror.Run(ctx, copyOptions(cfg)); err != nil {
		return err
	}

	s := &devSession{cfg: cfg, out: out, restart: config.Bool(cfg.Dev.RestartOnRebuild)}
	if !devFlags.noServer {
		name, childArgs, err := childCommand(cfg)
		if err != nil {
			return err
		}
		s.child = runner.New(name, childArgs,
			runner.WithDir(cfg.Dir),
			runner.WithGracePeriod(cfg.GracePeriod()),
			runner.WithOutput(os.Stdout, os.Stderr),
			runner.WithOnExit(out.ServerExited),
		)
		if err := s.child.Start(); err != nil {
			return err
		}
		out.ServerStarted(s.child.Pid(), s.url())
		defer func() {
			if err := s.child.Stop(); err != nil {
				log.Error("failed to stop server", "error", err)
			}
		}()
	}

	descriptor := buildDescriptor(cfg)
	coord, err := devloop.NewCoordinator(devloop.Options{
		Build: func(ctx context.Context, id string) error {
			_, err := bundle.Build(descriptor)
			return err
		},
		RebuildDelay: cfg.RebuildDelay(),
		OnStart:      out.Rebuilding,
		OnFinish:     out.Rebuilt,
		OnSuccess:    s.onBuildSuccess,
	})
	if err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Roots:        cfg.Paths(cfg.Dev.Watch),
		Base:         cfg.Dir,
		Ignore:       cfg.Dev.Ignore,
		ExcludePaths: []string{cfg.RootDir()},
		Debounce:     cfg.Debounce(),
		Logger:       out,
		OnChange:     func([]string) { coord.Trigger() },
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })

	// Initial build.
	coord.Trigger()

	err = g.Wait()
	out.Shutdown()
	return err
}
