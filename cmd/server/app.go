package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trendboard/internal/cache"
	"trendboard/internal/catalog"
	"trendboard/internal/config"
	"trendboard/internal/db"
	"trendboard/internal/jobs"
	"trendboard/internal/metrics"
	"trendboard/internal/models"
	"trendboard/internal/query"
	"trendboard/internal/server"
	"trendboard/internal/sources"
)

// app holds the wired services shared by every command.
type app struct {
	cfg          *config.Config
	log          *slog.Logger
	db           *db.DB
	catalog      *catalog.Catalog
	cache        *cache.Cache
	schedule     jobs.Schedule
	orchestrator *jobs.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	schedule, err := jobs.NewSchedule(cfg.SyncTimezone, cfg.SyncWeekday, cfg.SyncHour)
	if err != nil {
		return nil, err
	}

	database, err := openDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := database.SyncIndicators(ctx, cat.Models()); err != nil {
		database.Close()
		return nil, fmt.Errorf("register indicators: %w", err)
	}

	c := newCache(cfg, log)

	retry := sources.RetryPolicy{
		MaxAttempts: cfg.SourceMaxAttempts,
		Timeout:     cfg.SourceTimeout,
		BaseDelay:   cfg.SourceBaseDelay,
		MaxDelay:    cfg.SourceMaxDelay,
	}
	fetchers := []sources.Fetcher{
		sources.NewWorldBank(sources.WorldBankOptions{BaseURL: cfg.WorldBankBaseURL, Retry: retry, Logger: log}),
	}
	if estat := sources.NewEStat(sources.EStatOptions{BaseURL: cfg.EStatBaseURL, AppID: cfg.EStatAppID, Retry: retry, Logger: log}); estat != nil {
		fetchers = append(fetchers, estat)
	} else {
		log.Warn("ESTAT_APP_ID not set, e-Stat indicators will use seed data")
	}

	orchestrator := jobs.NewOrchestrator(jobs.OrchestratorOptions{
		Store:   database,
		Fetcher: sources.NewRegistry(fetchers...),
		Catalog: cat,
		Cache:   c,
		Logger:  log,
	})

	return &app{
		cfg:          cfg,
		log:          log,
		db:           database,
		catalog:      cat,
		cache:        c,
		schedule:     schedule,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.log.Warn("failed to close cache", "error", err)
	}
	a.db.Close()
}

func openDB(ctx context.Context, cfg *config.Config, log *slog.Logger) (*db.DB, error) {
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("migrations completed successfully")
	return database, nil
}

// newCache picks Redis when configured, falling back to the in-process cache
// when Redis is unreachable. A nil cache disables caching.
func newCache(cfg *config.Config, log *slog.Logger) *cache.Cache {
	if cfg.CacheDisabled {
		log.Info("cache disabled")
		return nil
	}
	if cfg.RedisURL != "" {
		backend, err := cache.NewRedisBackend(cfg.RedisURL)
		if err == nil {
			log.Info("using redis cache")
			return cache.New(backend, log)
		}
		log.Warn("redis unavailable, using in-process cache", "error", err)
	}
	return cache.New(cache.NewMemoryBackend(), log)
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.MetricsEnabled {
		metrics.Init(a.db)
	}

	svc := query.NewService(query.Options{
		Store:    a.db,
		Cache:    a.cache,
		Catalog:  a.catalog,
		Schedule: a.schedule,
		Logger:   log,
	})

	srv := server.New(cfg, log)
	srv.RegisterRoutes(server.Deps{
		DB:     a.db,
		Query:  svc,
		Runner: a.orchestrator,
		Logger: log,
	})

	if cfg.EnableScheduler {
		scheduler := jobs.NewScheduler(a.orchestrator, a.schedule, nil, log)
		go scheduler.Start(ctx)
		log.Info("scheduler enabled", "next_sync", svc.NextSync().Format(time.RFC3339))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func runSync(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orchestrator.Run(ctx, models.TriggerManual)
	if err != nil {
		return err
	}

	log.Info("sync finished",
		"id", result.ID,
		"status", result.Status,
		"indicators_updated", result.IndicatorsUpdated,
		"records_added", result.RecordsAdded,
		"records_updated", result.RecordsUpdated,
		"duration_ms", result.DurationMs,
	)
	if result.Status == models.SyncFailed {
		return errors.New("sync failed: " + result.Error)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	database, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	database.Close()
	return nil
}
