package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/handlers"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/mcp"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/middleware"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemacache"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemaconfig"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Schema engine stopped with error", logging.ErrorField(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting schema engine",
			zap.String("addr", srv.Addr),
			zap.String("base_url", cfg.BaseURL),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down schema engine")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// app is the wired engine without its listener.
type app struct {
	resolver services.SchemaResolver
	handler  http.Handler
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads the schema configuration, connects the live database when one
// is configured, and runs the startup preload before returning, so the first
// request served already sees a warm cache.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("config_dir", cfg.Schema.ConfigDir),
		zap.Bool("strict_mode", cfg.Schema.StrictMode),
		zap.Bool("enable_cache", cfg.Schema.EnableCache),
		zap.Int("cache_max_size", cfg.Schema.CacheMaxSize),
		zap.Duration("cache_ttl", cfg.Schema.CacheTTL()),
		zap.Bool("live_database", cfg.HasLiveDatabase()),
	)
	if ce := logger.Check(zap.DebugLevel, "Effective configuration"); ce != nil {
		if effective, err := cfg.EffectiveYAML(); err == nil {
			ce.Write(zap.String("config", effective))
		}
	}

	// A malformed or missing critical configuration file stops startup.
	store, err := schemaconfig.NewStore(cfg.Schema.ConfigDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load schema configuration: %w", err)
	}

	cache := schemacache.New(cfg.Schema.CacheMaxSize, cfg.Schema.CacheTTL(), logger)
	a := &app{}

	var introspector datasource.Introspector
	if cfg.HasLiveDatabase() {
		factory := datasource.NewIntrospectorFactory(logger)
		introspector, err = factory.NewIntrospector(ctx, cfg.LiveConnection())
		if err != nil {
			// Whitelisted tables still resolve from configuration.
			logger.Warn("Live database unavailable; continuing with static configuration only",
				zap.String("type", cfg.LiveDB.Type),
				logging.ErrorField(err))
			introspector = nil
		} else {
			live := introspector
			a.closers = append(a.closers, func() {
				if err := live.Close(); err != nil {
					logger.Warn("Failed to close live database", logging.ErrorField(err))
				}
			})
		}
	}

	resolver := services.NewResolver(store, cache, introspector, services.ResolverConfig{
		StrictMode:        cfg.Schema.StrictMode,
		EnableCache:       cfg.Schema.EnableCache,
		LiveTimeout:       cfg.Schema.LiveTimeout(),
		LiveRatePerSecond: cfg.Schema.LiveRatePerSecond,
		MaxConcurrent:     cfg.Schema.MaxConcurrentQueries,
		PreloadOnStartup:  cfg.Schema.PreloadOnStartup,
		PreloadTiers:      cfg.Schema.PreloadTiers,
		PreloadTables:     cfg.Schema.PreloadTables,
		ValidateWhitelist: cfg.Schema.ValidateWhitelist,
	}, logger)
	a.resolver = resolver

	if interval := cfg.Schema.SweepInterval(); interval > 0 {
		cache.StartSweeper(ctx, interval)
	}

	if cfg.Schema.PreloadOnStartup {
		resolver.Preload(ctx)
	}

	// Started after the preload so a file change cannot race it.
	if cfg.Schema.WatchConfig {
		watcher := schemaconfig.NewWatcher(cfg.Schema.ConfigDir, resolver.Reload, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Configuration watcher not started", logging.ErrorField(err))
		} else {
			a.closers = append(a.closers, watcher.Stop)
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, resolver, introspector, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(resolver, logger.Named("http")).RegisterRoutes(mux)
	mcpServer := mcp.NewServer(cfg.Version, resolver, introspector != nil, logger)
	handlers.NewMCPHandler(mcpServer, logger.Named("mcp")).RegisterRoutes(mux)
	a.handler = middleware.RequestLogger(logger.Named("http"))(mux)

	return a, nil
}
