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
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/plugin"
	"github.com/starford/othala/internal/skills"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/vaultdb"
)

// Run starts the vault server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger on stderr; stdout stays clean for tooling.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.SlogLevel(),
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("db_path", cfg.DB.Path),
		slog.String("log_level", cfg.App.LogLevel))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// In-memory index plus the SQLite projection for the query views.
	idx := vault.New(cfg.Vault.Path, logger)
	skillIdx := skills.New(cfg.Vault.SkillsPath(), logger)

	db, err := vaultdb.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init query layer: %w", err)
	}
	defer db.Close()

	// Plugins: builtins always, descriptor files when configured.
	registry := plugin.NewRegistry(logger)
	registry.LoadBuiltins()
	if cfg.Vault.PluginsDir != "" {
		if err := registry.LoadDir(cfg.Vault.PluginsDir); err != nil {
			logger.Warn("plugin dir load failed", slog.String("error", err.Error()))
		}
	}

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	svc := noteservice.NewService(store, idx, skillIdx, db, registry,
		noteservice.WithLogger(logger),
		noteservice.WithTodoFile(cfg.Vault.TodosFile),
		noteservice.WithNotifier(func(kind, slug string) {
			broker.Publish(sse.Event{Kind: kind, Slug: slug})
		}),
	)

	// Initial build. A broken note set should not keep the server from
	// starting; the watcher will pick up fixes.
	if err := svc.Rebuild(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	} else {
		logger.Info("vault indexed", slog.Int("notes", svc.NoteCount()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.Enabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

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

	// File watcher: every settled change triggers a full rebuild, which
	// fans out over SSE via the service notifier.
	if !app.noWatcher {
		g.Go(func() error {
			err := vault.Watch(gCtx, cfg.Vault.Path, logger, func() {
				if err := svc.Rebuild(gCtx); err != nil {
					logger.Error("rebuild after change failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				// Losing live reload is not fatal; the API keeps serving.
				logger.Error("watcher failed", slog.String("error", err.Error()))
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

	// Handle shutdown signals.
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
