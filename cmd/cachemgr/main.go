// cachemgr runs the durable cache manager as a small daemon: it opens the
// configured blob store, starts the scheduled cleanup loop, and optionally
// exposes Prometheus metrics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/queryscope/cachekit/internal/config"
	"github.com/queryscope/cachekit/internal/manager"
	"github.com/queryscope/cachekit/internal/metrics"
	"github.com/queryscope/cachekit/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// No logger yet; this is the one place a bare exit is acceptable.
		panic(err)
	}
	logger := config.NewLogger(cfg)

	logger.Info().
		Str("store_provider", cfg.Store.Provider).
		Str("namespace", cfg.Cache.Namespace).
		Int64("max_size", cfg.Cache.MaxSize).
		Msg("Starting cache manager with configuration")

	var reporter manager.Reporter
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn().Err(err).Msg("Sentry initialization failed, continuing without error reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
			reporter = func(err error) { sentry.CaptureException(err) }
		}
	}

	blobStore, err := store.New(cfg.Store.Provider, store.Config{
		RedisAddress:  cfg.Store.RedisAddress,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open durable store")
	}
	defer func() {
		if err := blobStore.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close durable store")
		}
	}()

	cleanupInterval := 6 * time.Hour
	if cfg.Cache.CleanupInterval != "" {
		if parsed, err := time.ParseDuration(cfg.Cache.CleanupInterval); err != nil {
			logger.Warn().Err(err).Str("interval", cfg.Cache.CleanupInterval).Msg("Invalid cleanup interval, using default 6h")
		} else {
			cleanupInterval = parsed
		}
	}

	opts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithMaxCacheSize(cfg.Cache.MaxSize),
		manager.WithCleanupInterval(cleanupInterval),
	}
	if reporter != nil {
		opts = append(opts, manager.WithReporter(reporter))
	}
	mgr := manager.NewManager(blobStore, cfg.Cache.Namespace, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !mgr.Initialize(ctx) {
		logger.Fatal().Msg("Durable store capability absent, nothing to manage")
	}
	mgr.StartScheduledCleanup(ctx)
	defer mgr.Close()

	// Start Prometheus metrics HTTP server
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Metrics.Address, cfg.Metrics.Port)
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
				logger.Fatal().Err(err).Msg("Failed to serve metrics")
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to shutdown metrics server")
			}
		}()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// One final reclamation pass so a long-idle namespace is not left over
	// budget between sessions.
	if !mgr.CleanupCache(ctx) {
		logger.Warn().Msg("Final cleanup pass reported errors")
	}
	logger.Info().Msg("Cache manager stopped gracefully")
}
