package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/api"
	"github.com/tworjaga/cherenkov-engine/internal/config"
	"github.com/tworjaga/cherenkov-engine/internal/correlate"
	"github.com/tworjaga/cherenkov-engine/internal/database"
	"github.com/tworjaga/cherenkov-engine/internal/detect"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
	"github.com/tworjaga/cherenkov-engine/internal/query"
	"github.com/tworjaga/cherenkov-engine/internal/storage"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.RedisURL, "redis-url", "", "Redis connection URL (overrides REDIS_URL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("log_level", level.String()).
		Msg("cherenkov-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed (run ALTER TABLE manually or grant ALTER privileges)")
	}

	// Cold archive (optional)
	var cold *storage.ColdArchive
	if cfg.EnableColdArchive {
		coldLog := log.With().Str("component", "cold-archive").Logger()
		cold, err = storage.NewColdArchive(cfg.ColdArchiveDir, coldLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize cold archive")
		}
		log.Info().Str("dir", cfg.ColdArchiveDir).Msg("cold archive initialized")
	}

	// Cache (Redis if configured, else in-process)
	var cache storage.Cache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		cache = storage.NewRedisCache(opt.Addr, opt.Password, opt.DB)
		log.Info().Str("addr", opt.Addr).Msg("redis cache connected")
	} else {
		cache = storage.NewMemoryCache()
		log.Info().Msg("in-process memory cache (REDIS_URL not set)")
	}

	tiered := storage.New(db, cold, cache, storage.Config{
		HotRetention:      time.Duration(cfg.HotRetentionDays) * 24 * time.Hour,
		WarmRetention:     time.Duration(cfg.WarmRetentionDays) * 24 * time.Hour,
		EnableColdArchive: cfg.EnableColdArchive,
	}, log)

	queryService := query.New(tiered, cache,
		time.Duration(cfg.HotRetentionDays)*24*time.Hour,
		time.Duration(cfg.WarmRetentionDays)*24*time.Hour,
		log)

	// Event bus (C6): bounded pub/sub with ring-buffer replay for the SSE port.
	bus := ingest.NewEventBus(cfg.ChannelBufferSize, 1000)

	// Ingest pipeline (C3): polls the registered source adapters, dedups,
	// retries, and writes through the tiered facade.
	pipeline := ingest.New(ingest.Config{
		ChannelBufferSize:       cfg.ChannelBufferSize,
		BatchSize:               cfg.BatchSize,
		BatchTimeout:            time.Duration(cfg.BatchTimeoutMS) * time.Millisecond,
		CircuitBreakerThreshold: cfg.CircuitBreakerThreshold,
		CircuitBreakerReset:     time.Duration(cfg.CircuitBreakerResetSecs) * time.Second,
		DLQMaxSize:              cfg.DLQMaxSize,
		DedupWindow:             time.Duration(cfg.DedupWindowSecs) * time.Second,
		DedupHighWaterMark:      cfg.DLQMaxSize,
	}, queryService, bus, log)

	// Correlation engine (C8): fed by the detector's anomaly notifications
	// and, via Run below, by USGS seismic readings off the bus directly.
	correlator := correlate.New(
		time.Duration(cfg.CorrelationWindowSecs)*time.Second,
		cfg.CorrelationRadiusKM,
	)
	correlator.LoadFacilities(correlate.DefaultFacilities())

	// Anomaly detector (C7): subscribes to NewReading events off the bus.
	detectLog := log.With().Str("component", "detect").Logger()
	detector := detect.New(detect.Config{
		MinSamples:        cfg.MinSamples,
		WarningThreshold:  cfg.AnomalyThreshold,
		CriticalThreshold: cfg.CriticalThreshold,
		Cooldown:          time.Duration(cfg.CooldownSecs) * time.Second,
		IdleRetire:        time.Duration(cfg.IdleRetireHours) * time.Hour,
	}, bus, queryService, correlator, detectLog)

	correlateLog := log.With().Str("component", "correlate").Logger()

	go pipeline.Run(ctx)
	go detector.Run(ctx, bus)
	go correlator.Run(ctx, bus, bus, correlateLog)
	go runRetentionSweep(ctx, tiered, log)

	if !cfg.AuthEnabled {
		log.Warn().Msg("AUTH_ENABLED=false — API authentication is disabled, all endpoints are open")
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:     cfg,
		DB:         db,
		Query:      queryService,
		EventBus:   bus,
		Pipeline:   pipeline,
		Detector:   detector,
		Correlator: correlator,
		Version:    fmt.Sprintf("%s (commit=%s, built=%s)", version, commit, buildTime),
		StartTime:  startTime,
		Log:        httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("listen", cfg.HTTPAddr).
		Str("version", version).
		Dur("startup_ms", time.Since(startTime)).
		Msg("cherenkov-engine ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("cherenkov-engine stopped")
}

// runRetentionSweep enforces hot/warm retention on a fixed interval until
// ctx is cancelled, mirroring the ingest pipeline's own maintenance-ticker
// pattern for periodic background upkeep.
func runRetentionSweep(ctx context.Context, tiered *storage.Tiered, log zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := tiered.EnforceRetention(ctx, time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("retention sweep failed")
				continue
			}
			log.Info().
				Int64("hot_pruned", result.HotPruned).
				Int64("warm_pruned", result.WarmPruned).
				Msg("retention sweep complete")
		}
	}
}
