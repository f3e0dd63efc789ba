package cli

import (
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/bundle"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/mirror"
	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/server"
	"github.com/albertocavalcante/editorhost/internal/log"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

// serverConfig maps the loaded configuration onto the static server.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Addr:            cfg.Addr(),
		Root:            cfg.RootDir(),
		DefaultDocument: cfg.Server.DefaultDocument,
		LibraryPrefix:   cfg.Library.Prefix,
		Required:        cfg.Library.Required,
		CORS:            config.Bool(cfg.Server.CORS),
		LiveReload:      config.Bool(cfg.Server.LiveReload),
		Logger:          log.Component("server"),
	}
}

// copyOptions maps the loaded configuration onto a library mirror run.
func copyOptions(cfg *config.Config) mirror.Options {
	return mirror.Options{
		Source:       cfg.Path(cfg.Library.Source),
		Dest:         cfg.LibraryDest(),
		Exclude:      cfg.Library.Exclude,
		Required:     cfg.Library.Required,
		ManifestPath: cfg.Path(cfg.Library.Manifest),
		Logger:       log.Component("mirror"),
	}
}

// buildDescriptor maps the loaded configuration onto one bundler run.
// Minification is on when configured or when NODE_ENV=production.
func buildDescriptor(cfg *config.Config) bundle.Descriptor {
	return bundle.Descriptor{
		Entries:     cfg.Paths(cfg.Build.Entries),
		Outfile:     cfg.Path(cfg.Build.Outfile),
		Target:      cfg.Build.Target,
		Minify:      config.Bool(cfg.Build.Minify) || bundle.MinifyFromEnv(),
		Externals:   cfg.Build.Externals,
		StaticFiles: cfg.Paths(cfg.Build.StaticFiles),
		WorkDir:     cfg.Dir,
	}
}
