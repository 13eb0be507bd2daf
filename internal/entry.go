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

	"github.com/pAIrprogio/synscript-sub000/internal/api"
	"github.com/pAIrprogio/synscript-sub000/internal/entryservice"
	"github.com/pAIrprogio/synscript-sub000/internal/index"
	"github.com/pAIrprogio/synscript-sub000/internal/mcpserver"
	"github.com/pAIrprogio/synscript-sub000/internal/mddb"
	"github.com/pAIrprogio/synscript-sub000/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := configure(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_path", cfg.Database.Path),
		slog.Any("globs", cfg.Database.Globs),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, closeIdx, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdx()

	// SSE broker fed by refresh results.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	svc.OnRefresh(func(res *entryservice.RefreshResult, err error) {
		if err != nil {
			broker.PublishRefreshError(err)
			return
		}
		broker.PublishRefresh(sse.Refreshed{
			Entries:  res.Entries,
			Upserted: res.Upserted,
			Deleted:  res.Deleted,
		})
	})

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on file changes.
	if cfg.Database.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, svc.Root(), logger, svc.Covers, func() {
				// Failures are logged by the service and pushed to SSE clients.
				_, _ = svc.Refresh(gCtx)
			})
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

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher with the server.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the database over MCP on stdin/stdout. Logs go to stderr so
// they never interleave with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := configure(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	svc, closeIdx, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdx()

	logger.Info("Starting MCP server", slog.String("database_path", cfg.Database.Path))

	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpserver.New(svc, app.version).ServeStdio()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

var errShutdown = errors.New("shutdown")

func configure(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openService opens the entry database and its SQLite mirror and runs the
// initial sync. The returned func closes the index.
func openService(cfg *Config, logger *slog.Logger) (*entryservice.Service, func(), error) {
	// Ensure database directory exists.
	if err := os.MkdirAll(cfg.Database.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := mddb.New(cfg.Database.Path, cfg.Database.options(logger)...)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}

	idx, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	svc := entryservice.NewService(db, idx, logger)

	// An invalid entry on startup is reported, not fatal; the next refresh
	// retries.
	if _, err := svc.Sync(context.Background()); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return svc, func() { _ = idx.Close() }, nil
}

func (c *DatabaseConfig) options(logger *slog.Logger) []mddb.Option {
	opts := []mddb.Option{
		mddb.WithGlobs(c.Globs...),
		mddb.WithSeparator(c.Separator),
		mddb.WithLogger(logger),
	}
	if c.CacheKey == CacheKeyJSON {
		opts = append(opts, mddb.WithCacheKey(mddb.JSONCacheKey))
	}
	return opts
}
