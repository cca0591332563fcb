// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/admin"
	"github.com/starford/sowilo/internal/api"
	"github.com/starford/sowilo/internal/importer"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/store"
	"github.com/starford/sowilo/internal/wiki"
)

// components are the long-lived parts shared by the HTTP and MCP entry points.
type components struct {
	logger *slog.Logger
	store  *store.Store
	svc    *admin.Service
}

func (c *components) Close() {
	if err := c.store.Close(); err != nil {
		c.logger.Error("close store", slog.String("error", err.Error()))
	}
}

// setup applies opts, configures logging and opens the wiki.
func setup(opts []Option, events admin.EventFunc) (*application, *components, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("uploads_path", cfg.Uploads.Path),
		slog.String("orphan_policy", string(cfg.Wiki.Policy())),
		slog.Bool("import_enabled", cfg.Import.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure uploads directory exists.
	if err := os.MkdirAll(cfg.Uploads.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create uploads dir: %w", err)
	}
	uploads, err := storage.NewFS(cfg.Uploads.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init uploads storage: %w", err)
	}

	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	reg := wiki.NewRegistry(st,
		wiki.WithDefaultPassword(cfg.Wiki.DefaultPassword),
		wiki.WithOrphanPolicy(cfg.Wiki.Policy()),
		wiki.WithLogger(logger))

	svcOpts := []admin.Option{admin.WithUploads(uploads), admin.WithLogger(logger)}
	if events != nil {
		svcOpts = append(svcOpts, admin.WithEvents(events))
	}
	svc := admin.NewService(reg, svcOpts...)

	return app, &components{logger: logger, store: st, svc: svc}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the HTTP server, and the importer when enabled, until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	app, c, err := setup(opts, broker.PublishWikiEvent)
	if err != nil {
		return err
	}
	defer c.Close()
	cfg, logger := app.config, c.logger

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.svc.Registry().IsInitialized(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SSE handlers only return once their subscription is closed.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Import tree: initial sync, then watch.
	if cfg.Import.Enabled {
		if err := os.MkdirAll(cfg.Import.Path, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Import.Path)
		if err != nil {
			return fmt.Errorf("init import storage: %w", err)
		}
		im := importer.New(c.svc, files, logger)
		onImport := func(web, page string) {
			logger.Debug("page imported", slog.String("web", web), slog.String("page", page))
		}
		if err := im.Sync(gCtx, onImport); err != nil {
			logger.Warn("initial import failed", slog.String("error", err.Error()))
		}
		g.Go(func() error {
			if err := im.Watch(gCtx, cfg.Import.Path, onImport); err != nil {
				logger.Error("import watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down once the group context ends; it also carries the signals.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the wiki tools over MCP on stdin/stdout. Logs go to stderr
// unless another output is configured.
func RunMCP(_ context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	_, c, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
