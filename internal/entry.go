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
	"github.com/m-mizutani/clog"
	"golang.org/x/sync/errgroup"

	"github.com/starford/glean/internal/aiclient"
	"github.com/starford/glean/internal/api"
	"github.com/starford/glean/internal/ingest"
	"github.com/starford/glean/internal/mcpserver"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/session"
	"github.com/starford/glean/internal/sse"
	"github.com/starford/glean/internal/storage"
	"github.com/starford/glean/internal/store"
)

// components are the long-lived services shared by the HTTP and MCP modes.
type components struct {
	logger   *slog.Logger
	db       *store.DB
	blobs    *storage.FS
	broker   *sse.Broker
	registry *session.Registry
	ingestor *ingest.Ingestor
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	if cfg.LogFormat == LogFormatConsole {
		return slog.New(clog.New(
			clog.WithWriter(w),
			clog.WithLevel(cfg.LogLevel),
			clog.WithTimeFmt("15:04:05"),
			clog.WithSource(false),
		))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func (a *application) build() (*components, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	w := a.logWriter
	if w == nil {
		w = os.Stdout
	}
	logger := newLogger(cfg.App, w)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ai_base_url", cfg.AI.BaseURL),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	blobs, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)
	db.SetTurnHook(func(t models.Turn) {
		broker.PublishSessionEvent(sse.TypeTurnCreated, t.SessionID, t)
	})

	ai := aiclient.New(cfg.AI.BaseURL,
		aiclient.WithAPIKey(cfg.AI.APIKey),
		aiclient.WithTimeout(cfg.AI.RequestTimeout),
	)

	registry := session.NewRegistry(session.Deps{
		Store:  db,
		AI:     ai,
		Broker: broker,
		Logger: logger,
		Config: session.Config{
			AutosaveDelay:     cfg.Note.AutosaveDelay,
			AnnotationTTL:     cfg.Note.AnnotationTTL,
			ChatTimeout:       cfg.AI.ChatTimeout,
			Template:          cfg.Note.DefaultTemplate,
			SummarizeKeywords: cfg.Assistant.SummarizeKeywords,
		},
	})

	return &components{
		logger:   logger,
		db:       db,
		blobs:    blobs,
		broker:   broker,
		registry: registry,
		ingestor: ingest.New(db, blobs, ai, broker, logger),
	}, nil
}

// close flushes every active session before the broker and database go away.
func (c *components) close(ctx context.Context) {
	if err := c.registry.CloseAll(ctx); err != nil {
		c.logger.Error("closing sessions", slog.String("error", err.Error()))
	}
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Error("closing store", slog.String("error", err.Error()))
	}
}

const shutdownTimeout = 10 * time.Second

// shutdown stops srv and then closes the components. Event streams never
// end on their own, so the broker goes first. Sessions get a fresh timeout
// for their final saves.
func (c *components) shutdown(srv *http.Server, timeout time.Duration) {
	c.broker.Close()

	httpCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		c.logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), timeout)
	defer cancelClose()
	c.close(closeCtx)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	c, err := app.build()
	if err != nil {
		return err
	}
	cfg := app.config
	logger := c.logger

	h := api.NewHandler(c.db, c.registry, c.ingestor, c.blobs, c.broker, logger)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

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
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Inbox.Enabled() {
		g.Go(func() error {
			if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
				return fmt.Errorf("create inbox dir: %w", err)
			}
			if err := c.ingestor.Watch(gCtx, cfg.Inbox.Path); err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if cfg.Session.EvictionEnabled() {
		g.Go(func() error {
			c.registry.Sweep(gCtx, cfg.Session.IdleTimeout, cfg.Session.SweepInterval)
			return nil
		})
	}

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
		stop()
		c.shutdown(httpServer, shutdownTimeout)

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdin/stdout until the client
// disconnects or ctx is cancelled.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}

	c, err := app.build()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.close(closeCtx)
	}()

	c.logger.Info("MCP server starting on stdio")
	err = mcpserver.New(c.db, c.registry, c.ingestor).ServeStdio(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	c.logger.Info("MCP server stopped")
	return nil
}
