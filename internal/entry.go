// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iteam-company/blockpress/internal/api"
	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/mcpserver"
	"github.com/iteam-company/blockpress/internal/media"
	"github.com/iteam-company/blockpress/internal/schema"
	"github.com/iteam-company/blockpress/internal/sse"
	"github.com/iteam-company/blockpress/internal/storage"
	"github.com/iteam-company/blockpress/internal/store"
	"github.com/iteam-company/blockpress/internal/watcher"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	db       *store.DB
	resolver *media.Resolver
	svc      *docservice.Service
}

func (rt *runtime) Close() error {
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// newResolver prepares the media directory and the image resolver.
func newResolver(cfg *Config, logger *slog.Logger) (*media.Resolver, error) {
	if err := os.MkdirAll(cfg.Media.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	mediaStore, err := storage.NewFS(cfg.Media.Path)
	if err != nil {
		return nil, fmt.Errorf("init media storage: %w", err)
	}
	return media.NewResolver(mediaStore,
		media.WithPublicPath(cfg.Media.PublicPath),
		media.WithPublicDomain(cfg.Media.PublicDomain),
		media.WithMaxSize(cfg.Media.MaxSize),
		media.WithRemoteFetch(cfg.Media.AllowRemote),
		media.WithLogger(logger),
	), nil
}

// newConverter builds the converter and the schema validator from config.
func newConverter(cfg *Config, resolver *media.Resolver, logger *slog.Logger) (*converter.Converter, *schema.Validator, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	opts := append(cfg.Converter.Options(),
		converter.WithImageResolver(resolver),
		converter.WithLogger(logger),
	)
	return converter.New(opts...), validator, nil
}

// setup opens every component a long-running command needs.
func setup(cfg *Config, logger *slog.Logger, notify docservice.Notifier) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	content, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("init content storage: %w", err)
	}

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	rt.db, err = store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	rt.resolver, err = newResolver(cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	conv, validator, err := newConverter(cfg, rt.resolver, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.svc = docservice.New(conv, rt.db,
		docservice.WithValidator(validator),
		docservice.WithContent(content, cfg.Content.Extensions),
		docservice.WithLogger(logger),
		docservice.WithNotifier(notify),
	)
	return rt, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.newLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Content.Path),
		slog.String("media_path", cfg.Media.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(cfg, logger, broker.PublishDocumentEvent)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Run initial sync.
	if _, err := rt.svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.svc, rt.resolver, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Image URLs in converted documents point at the public path.
	publicPath := strings.TrimSuffix(cfg.Media.PublicPath, "/")
	r.Get(publicPath+"/{filename}", api.NewAttachmentHandler(rt.resolver).ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the store in step with the content directory.
	if cfg.Content.Watch {
		g.Go(func() error {
			err := watcher.Watch(gCtx, cfg.Content.Path, rt.svc, logger, func(kind, path string) {
				logger.Debug("content changed", slog.String("kind", kind), slog.String("path", path))
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
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

// errShutdown cancels the group so the watcher returns once the server is
// down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()
	slog.SetDefault(logger)

	rt, err := setup(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}

// ConvertOptions controls a one-shot conversion.
type ConvertOptions struct {
	// Format overrides detection from the file extension.
	Format string
	// Envelope selects the output shape: "" for the block document,
	// "article" for the CMS envelope.
	Envelope string
}

// ConvertFile converts a single file and writes the JSON result to out. It
// touches neither the store nor the content directory; referenced images
// are still written to the media directory.
func ConvertFile(ctx context.Context, path string, out io.Writer, copts ConvertOptions, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	format := converter.Format(copts.Format)
	if format == "" {
		format, _ = converter.FormatForPath(path)
	}

	resolver, err := newResolver(app.config, logger)
	if err != nil {
		return err
	}
	conv, validator, err := newConverter(app.config, resolver, logger)
	if err != nil {
		return err
	}

	doc, err := conv.Convert(ctx, converter.Request{Source: string(data), Format: format})
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	if err := validator.ValidateDocument(doc); err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}

	var result any = doc
	if copts.Envelope == "article" {
		result = doc.Article()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
