// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/legvotes/internal/api"
	"github.com/onnwee/legvotes/internal/config"
	"github.com/onnwee/legvotes/internal/health"
	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/middleware"
	"github.com/onnwee/legvotes/internal/page"
	"github.com/onnwee/legvotes/internal/search"
	"github.com/onnwee/legvotes/internal/store"
	"github.com/onnwee/legvotes/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("api", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	build := flags.Bool("build", false, "write the prerendered layout data to the data dir and exit")
	addr := flags.String("addr", "", "listen address (overrides the configured port)")
	help := flags.Bool("help", false, "display help message")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *help {
		fmt.Fprintln(stdout, "legvotes API Server")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Usage: api [options]")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Options:")
		flags.SetOutput(stdout)
		flags.PrintDefaults()
		return nil
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	layout := page.NewLayoutProvider(nil, cfg.Prerender)
	if *build {
		path := filepath.Join(cfg.DataDir, legdata.LayoutFile)
		if err := layout.WriteSnapshot(ctx, path); err != nil {
			return err
		}
		logger.Info("wrote layout data", "path", path)
		return nil
	}

	logger.Info("configuration loaded", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(tracing.ConfigFrom(cfg, api.ServiceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	if tp.IsEnabled() {
		logger.Info("tracing enabled", "exporter", cfg.TracingExporter, "endpoint", cfg.OTLPEndpoint)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.Prerender {
		if _, err := layout.Build(ctx); err != nil {
			return err
		}
	}

	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	if src, ok := deps.source.(reloader); ok {
		go reloadOnHangup(ctx, logger, src)
	}

	router, err := newRouter(ctx, cfg, logger, layout, deps)
	if err != nil {
		return err
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.Port)
	}
	return serve(ctx, logger, listenAddr, router)
}

// dependencies are the external services the server talks to. Nil fields
// are not configured.
type dependencies struct {
	db     *sql.DB
	redis  *redis.Client
	source legdata.Source
}

func (d *dependencies) close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
}

// reloader is implemented by sources that cache the catalog.
type reloader interface {
	Reload()
}

// reloadOnHangup drops the cached catalog on SIGHUP so the documents of a
// finished loader run are served without a restart.
func reloadOnHangup(ctx context.Context, logger *slog.Logger, src reloader) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			src.Reload()
			logger.Info("catalog reload requested")
		}
	}
}

// connect opens the configured backing services. The catalog comes from
// PostgreSQL when DATABASE_URL is set and from the data dir otherwise.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.source = store.New(db, logger)
		logger.Info("serving catalog from database")
	} else {
		deps.source = legdata.NewDirSource(cfg.Paths())
		logger.Info("serving catalog from data dir", "dir", cfg.DataDir)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		deps.redis = redis.NewClient(opts)
	}
	return deps, nil
}

func newRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, layout *page.Provider[page.LayoutData], deps *dependencies) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	searchMetrics := search.NewMetrics()
	if err := searchMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register search metrics: %w", err)
	}

	matcher, err := search.NewMatcher(cfg.SearchMatcher, cfg.SearchFoldDiacritics)
	if err != nil {
		return nil, err
	}

	healthCfg := api.HealthHandlersConfig{
		CatalogChecker: health.NewCatalogChecker(deps.source),
	}
	if deps.db != nil {
		healthCfg.DBChecker = health.NewDBChecker(deps.db)
	}

	var limiter func(http.Handler) http.Handler
	if cfg.SearchRateLimit > 0 {
		var rateStore middleware.RateLimitStore
		if deps.redis != nil {
			rateStore = middleware.NewRedisRateLimitStore(deps.redis, httpMetrics)
			healthCfg.RedisChecker = health.NewRedisChecker(deps.redis)
		} else {
			mem := middleware.NewInMemoryRateLimitStore()
			go mem.RunCleanup(ctx, time.Minute)
			rateStore = mem
		}
		limiter = middleware.RateLimiter(rateStore, middleware.SearchLimit(cfg.SearchRateLimit), middleware.IPKeyFunc(), httpMetrics)
	} else if deps.redis != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(deps.redis)
	}

	searchHandlers := api.NewSearchHandlers(deps.source, matcher, searchMetrics)
	return api.NewRouter(api.RouterConfig{
		Search:         searchHandlers,
		LiveSearch:     api.NewLiveSearchHandlers(searchHandlers, cfg.CORSAllowedOrigins),
		Layout:         api.NewLayoutHandlers(layout),
		Votes:          api.NewVotesHandlers(deps.source),
		Health:         api.NewHealthHandlers(healthCfg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600},
		SearchLimiter:  limiter,
	}), nil
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
