package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nuzulstay/nuzulstay/internal/app"
	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/beds24"
	jobmetrics "github.com/nuzulstay/nuzulstay/internal/jobs"
	"github.com/nuzulstay/nuzulstay/internal/occupancy"
	"github.com/nuzulstay/nuzulstay/internal/platform/cache"
	"github.com/nuzulstay/nuzulstay/internal/platform/db"
	"github.com/nuzulstay/nuzulstay/internal/shared"
	"github.com/nuzulstay/nuzulstay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditor := audit.NewRecorder(pool)
	channelClient := beds24.NewHTTPClient(beds24.Config{
		BaseURL:       cfg.Beds24APIURL,
		APIKey:        cfg.Beds24APIKey,
		Timeout:       cfg.Beds24Timeout,
		WritesEnabled: cfg.Beds24WritesEnabled,
	})
	checker := occupancy.NewCachedChecker(channelClient, redisClient, cfg.AvailabilityCacheTTL, cfg.Beds24Timeout)
	occupancyService := occupancy.NewService(occupancy.NewRepository(pool), checker, auditor)

	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAvailabilityWarmup, Handler: jobs.NewAvailabilityWarmupHandler(occupancyService, metrics, logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: jobs.NewAvailabilityWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
