// Package server is the static asset server for a self-hosted editor.
//
// It serves a directory tree with the headers module workers and wasm
// grammars need: exact JavaScript and wasm content types, cross-origin
// isolation on every response, permissive CORS and long-lived caching of
// versioned assets. Navigation paths fall back to the default document;
// missing scripts never do.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matthewmueller/livereload"

	"github.com/albertocavalcante/editorhost/internal/log"
)

// ShutdownTimeout bounds graceful shutdown after the context is cancelled.
const ShutdownTimeout = 5 * time.Second

// Config holds the configuration for the static server.
type Config struct {
	Addr            string   // listen address (default ":8080")
	Root            string   // static root directory
	DefaultDocument string   // served for extensionless navigation (default "index.html")
	LibraryPrefix   string   // URL prefix of the mirrored editor library
	Required        []string // required library entries, relative to the prefix
	CORS            bool
	LiveReload      bool
	Logger          *slog.Logger
}

// Server serves the static root over HTTP.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	router  chi.Router
	handler http.Handler

	// startReload begins watching the root for live reload; nil when disabled.
	startReload func(ctx context.Context)
}

// New creates a Server. Root must be set.
func New(cfg Config) (*Server, error) {
	if cfg.Root == "" {
		return nil, errors.New("root must not be empty")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DefaultDocument == "" {
		cfg.DefaultDocument = "index.html"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Component("server")
	}

	s := &Server{cfg: cfg, logger: logger}
	s.router = s.buildRouter()
	s.handler = s.router

	if cfg.LiveReload {
		lr := livereload.New(logger)
		s.handler = lr.Middleware(s.router)
		root := cfg.Root
		s.startReload = func(ctx context.Context) {
			go lr.Watch(ctx, root)
		}
	}

	return s, nil
}

// ServeHTTP delegates to the router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Isolation headers first so every response carries them, errors included.
	r.Use(isolationHeaders)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.cfg.CORS {
		r.Use(cors)
	}
	r.Use(middleware.GetHead)

	r.Get("/health", s.handleHealth)
	r.Get("/debug/files", s.handleDebugFiles)
	r.Get("/*", s.handleStatic)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
	})

	return r
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	if s.startReload != nil {
		s.startReload(ctx)
	}

	s.logger.Info("serving", "addr", ln.Addr().String(), "root", s.cfg.Root)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}
