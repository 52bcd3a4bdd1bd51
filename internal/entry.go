// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/smartyoni/checkdoc/internal/api"
	"github.com/smartyoni/checkdoc/internal/backupfile"
	"github.com/smartyoni/checkdoc/internal/docservice"
	"github.com/smartyoni/checkdoc/internal/localstore"
	"github.com/smartyoni/checkdoc/internal/mcpserver"
	"github.com/smartyoni/checkdoc/internal/migrate"
	"github.com/smartyoni/checkdoc/internal/remotestore"
	"github.com/smartyoni/checkdoc/internal/sse"
	"github.com/smartyoni/checkdoc/internal/storage"
)

// components holds the wired persistence and domain layers shared by every
// entry point (server, MCP, backup CLI).
type components struct {
	local  *localstore.Store
	store  *storage.Facade
	logger *slog.Logger
}

func (c *components) Close() {
	if err := c.local.Close(); err != nil {
		c.logger.Warn("close local store", slog.String("error", err.Error()))
	}
}

// setup initializes logging and wires the adapters, the facade, and the
// migration engine, then runs migrations (failures logged, never fatal).
func setup(ctx context.Context, cfg *Config) (*components, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	local, err := localstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init local store: %w", err)
	}

	remote := remotestore.New(redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))
	if err := remote.Ping(ctx); err != nil {
		logger.Warn("remote store unreachable at startup, running degraded",
			slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
	}

	store := storage.NewFacade(remote, local, logger)

	engine := migrate.NewEngine(local, local, remote, store, logger)
	engine.Run(ctx)

	return &components{local: local, store: store, logger: logger}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	comps, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()
	logger := comps.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker bridges controller events to connected clients.
	broker := sse.NewBroker()
	defer broker.Close()

	svc := docservice.NewService(comps.store, logger, broker.PublishEntityEvent)
	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

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
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	comps, err := setup(ctx, app.config)
	if err != nil {
		return err
	}
	defer comps.Close()

	svc := docservice.NewService(comps.store, comps.logger, nil)
	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	return mcpserver.New(svc).ServeStdio()
}

// Backup exports both collections to a JSON backup file at path.
func Backup(ctx context.Context, path string, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	comps, err := setup(ctx, app.config)
	if err != nil {
		return err
	}
	defer comps.Close()

	b, err := comps.store.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := backupfile.Write(path, b); err != nil {
		return err
	}
	comps.logger.Info("backup written", slog.String("path", path),
		slog.Int("documents", len(b.Documents)), slog.Int("templates", len(b.Templates)))
	return nil
}

// Restore applies a JSON backup file at path to the backends.
func Restore(ctx context.Context, path string, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	comps, err := setup(ctx, app.config)
	if err != nil {
		return err
	}
	defer comps.Close()

	data, err := backupfile.Read(path)
	if err != nil {
		return err
	}

	svc := docservice.NewService(comps.store, comps.logger, nil)
	if err := svc.Restore(ctx, data); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	comps.logger.Info("backup restored", slog.String("path", path))
	return nil
}
