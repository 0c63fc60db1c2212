package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/lingorun/internal/api"
	"github.com/vytor/lingorun/internal/config"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/llm"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/paragraphcache"
	"github.com/vytor/lingorun/internal/pool"
	"github.com/vytor/lingorun/internal/ratelimit"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/repository/sqlite"
	"github.com/vytor/lingorun/internal/scheduler"
	"github.com/vytor/lingorun/internal/services"
	"github.com/vytor/lingorun/internal/ttlstore"
	"github.com/vytor/lingorun/internal/worker"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.ParseFormat(cfg.LogFormat)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("Lingorun Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("cache_backend=%s", cfg.CacheBackend)
	log.Debug("llm_model=%s", cfg.LLMModel)
	log.Debug("prefetch_worker_count=%d", cfg.PrefetchWorkerCount)
	log.Debug("prefetch_queue_size=%d", cfg.PrefetchQueueSize)
	log.Debug("cache_ttl=%s", cfg.CacheTTL)
	log.Debug("rate_limit_hourly=%d rate_limit_daily=%d", cfg.RateLimitHourly, cfg.RateLimitDaily)
	log.Debug("warmup_languages=%v warmup_cron_time=%s", cfg.WarmupLanguages, cfg.WarmupCronTime)

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()
	if versions, err := database.AppliedMigrations(context.Background()); err == nil && len(versions) > 0 {
		log.Info("schema at %s (%d migrations)", versions[len(versions)-1], len(versions))
	}
	store := sqlite.NewStore(database.DB)

	ctx, cancel := context.WithCancel(logger.NewContext(context.Background(), log))
	defer cancel()

	seedPool(ctx, cfg, store)

	// Shared TTL store for the paragraph cache and the rate limiter
	cache, err := openCache(ctx, cfg)
	if err != nil {
		log.Error("failed to open %s cache: %v", cfg.CacheBackend, err)
		os.Exit(1)
	}
	defer cache.Close()

	limiter := ratelimit.NewLimiter(cache, ratelimit.Limits{Hourly: cfg.RateLimitHourly, Daily: cfg.RateLimitDaily}, nil)
	client := llm.New(llm.Options{
		URL:     cfg.LLMAPIURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	prefetchPool := worker.NewPool("prefetch", cfg.PrefetchWorkerCount, cfg.PrefetchQueueSize)
	prefetchPool.Start(ctx)
	pipeline := paragraphcache.New(cache, client, limiter, prefetchPool, paragraphcache.Options{
		TTL:             cfg.CacheTTL,
		GenerateTimeout: cfg.GenerateTimeout,
		WarmupDelay:     cfg.WarmupDelay,
	})

	// Initialize services
	srv := &api.Server{
		DB:         database,
		Paragraphs: store.Repos().Paragraphs,
		Sessions:   services.NewSessionService(store, client, cfg.EvaluateTimeout, nil),
		Runs:       services.NewRunService(store, pipeline, nil),
		Reviews:    services.NewReviewService(store, nil),
		Content:    pipeline,
		Limiter:    limiter,
	}

	sched := scheduler.New(pipeline, log)
	if mem, ok := cache.(*ttlstore.MemoryStore); ok {
		if err := sched.SweepEvery(mem, cfg.CacheSweepInterval); err != nil {
			log.Error("failed to schedule cache sweep: %v", err)
			os.Exit(1)
		}
	}
	if err := sched.Start(cfg.WarmupCronTime, cfg.WarmupLanguages); err != nil {
		log.Error("failed to start scheduler: %v", err)
		os.Exit(1)
	}

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("stopping scheduler")
	sched.Stop(shutdownCtx)

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping prefetch pool")
	cancel()
	pipeline.Close()

	log.Info("===========================================")
	log.Info("Lingorun Server Stopped")
	log.Info("===========================================")
}

func openCache(ctx context.Context, cfg config.Config) (ttlstore.Store, error) {
	if cfg.CacheBackend == config.CacheBackendRedis {
		return ttlstore.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	return ttlstore.NewMemoryStore(nil), nil
}

// seedPool imports POOL_SEED_FILE when the static pool is still empty.
func seedPool(ctx context.Context, cfg config.Config, store repository.Store) {
	log := logger.FromContext(ctx)
	if cfg.PoolSeedFile == "" {
		return
	}
	repo := store.Repos().Paragraphs
	n, err := repo.CountSeed(ctx)
	if err != nil {
		log.Error("failed to count seed paragraphs: %v", err)
		return
	}
	if n > 0 {
		log.Debug("paragraph pool already holds %d seed paragraphs", n)
		return
	}

	res, err := pool.NewImporter(repo).Import(ctx, pool.DefaultImportConfig(cfg.PoolSeedFile))
	if err != nil {
		log.Error("failed to seed paragraph pool from %s: %v", cfg.PoolSeedFile, err)
		return
	}
	log.Info("seeded paragraph pool from %s: created=%d skipped=%d errors=%d", cfg.PoolSeedFile, res.Created, res.Skipped, len(res.Errors))
}
