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

	"github.com/starford/tabdex/internal/api"
	"github.com/starford/tabdex/internal/coordinator"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/gateway"
	"github.com/starford/tabdex/internal/host"
	"github.com/starford/tabdex/internal/mcpserver"
	"github.com/starford/tabdex/internal/objects"
	"github.com/starford/tabdex/internal/prefs"
	"github.com/starford/tabdex/internal/sse"
	"github.com/starford/tabdex/internal/state"
	"github.com/starford/tabdex/internal/storage"
	"github.com/starford/tabdex/internal/tracker"
)

// queueThrottle bounds how often the shim is told about pending jobs.
const queueThrottle = 2 * time.Second

// services is the wired object graph shared by every entry point.
type services struct {
	logger  *slog.Logger
	objects *objects.DB
	engine  *engine.Engine
	coord   *coordinator.Service
	tracker *tracker.Tracker
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (app *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// open builds the state, object store, engine, coordinator and tracker.
func open(cfg *Config, logger *slog.Logger) (*services, error) {
	area, err := storage.NewFileArea(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("init state area: %w", err)
	}

	db, err := objects.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	eng := engine.New(cfg.Engine.Dir, logger)
	if err := eng.Prepare(engine.DefaultDB, eng.PathFor(engine.DefaultDB)); err != nil {
		db.Close()
		if errors.Is(err, engine.ErrLocked) {
			return nil, fmt.Errorf("init engine: %w (only one tabdex process may use %s; stop the server first)", err, cfg.Engine.Dir)
		}
		return nil, fmt.Errorf("init engine: %w", err)
	}

	coord := coordinator.New(db, eng, logger, coordinator.WithLanguage(cfg.Engine.Language))
	tr := tracker.New(state.NewAdapter(area, coord, logger), logger)

	// A first start resets and purges, which must happen before any page
	// is stored.
	if err := tr.Ensure(context.Background()); err != nil {
		tr.Close()
		_ = eng.Close()
		db.Close()
		return nil, fmt.Errorf("init state: %w", err)
	}

	return &services{logger: logger, objects: db, engine: eng, coord: coord, tracker: tr}, nil
}

// close commits pending index writes and releases everything open opened.
func (s *services) close() {
	if err := s.coord.Commit(context.Background(), engine.DefaultDB); err != nil {
		s.logger.Warn("commit on shutdown failed", slog.String("error", err.Error()))
	}
	s.tracker.Close()
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("engine close failed", slog.String("error", err.Error()))
	}
	if err := s.objects.Close(); err != nil {
		s.logger.Warn("object store close failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("state_dir", cfg.State.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("engine_dir", cfg.Engine.Dir),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	userPrefs, err := prefs.Open(cfg.Prefs.Path, logger)
	if err != nil {
		return fmt.Errorf("init prefs: %w", err)
	}

	// Host command stream consumed by the browser shim.
	broker := sse.NewBroker(queueThrottle)
	defer broker.Close()
	bridge := host.NewBridge(broker, logger)

	gw := gateway.New(svc.tracker, bridge, userPrefs, logger)
	apiRouter := api.NewRouter(api.Deps{
		Gateway:     gw,
		Tracker:     svc.tracker,
		Coordinator: svc.coord,
		Prefs:       userPrefs,
		Broker:      broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
		if err := svc.objects.Ping(); err != nil {
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
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload preferences on edit and push the open mode to the shim.
	g.Go(func() error {
		err := userPrefs.Watch(gCtx, func(old, updated prefs.Prefs) {
			if old.OpenMode == updated.OpenMode {
				return
			}
			popup := updated.OpenMode == prefs.OpenModePopup
			if err := bridge.SetPopupMode(gCtx, popup); err != nil {
				logger.Warn("set popup mode failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			logger.Warn("prefs watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tools over stdio until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, err := open(app.config, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc.coord, svc.tracker, app.version).ServeStdio()
}

// Reset clears the tab bundle and purges every engine database and the
// object store.
func Reset(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, err := open(app.config, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.tracker.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logger.Info("Reset complete")
	return nil
}
