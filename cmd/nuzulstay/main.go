package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nuzulstay/nuzulstay/internal/app"
	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/beds24"
	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/kpi"
	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/observability"
	"github.com/nuzulstay/nuzulstay/internal/occupancy"
	"github.com/nuzulstay/nuzulstay/internal/platform/cache"
	"github.com/nuzulstay/nuzulstay/internal/platform/db"
	"github.com/nuzulstay/nuzulstay/internal/renewal"
	"github.com/nuzulstay/nuzulstay/internal/shared"
	"github.com/nuzulstay/nuzulstay/internal/units"
	"github.com/nuzulstay/nuzulstay/internal/webhook"
	"github.com/nuzulstay/nuzulstay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()
	auditor := audit.NewRecorder(pool)

	auditService := audit.NewService(audit.NewPGRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditor, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	channelClient := beds24.NewHTTPClient(beds24.Config{
		BaseURL:       cfg.Beds24APIURL,
		APIKey:        cfg.Beds24APIKey,
		Timeout:       cfg.Beds24Timeout,
		WritesEnabled: cfg.Beds24WritesEnabled,
	})
	checker := occupancy.NewCachedChecker(channelClient, redisClient, cfg.AvailabilityCacheTTL, cfg.Beds24Timeout)
	occupancyService := occupancy.NewService(occupancy.NewRepository(pool), checker, auditor)
	occupancyHandler := occupancy.NewHandler(logger, occupancyService)

	conflictGuard := guard.New(occupancyService, metrics)

	unitsRepo := units.NewRepository(pool)
	unitsService := units.NewService(unitsRepo, ledgerService, conflictGuard, auditor)
	unitsHandler := units.NewHandler(logger, unitsService)

	kpiService := kpi.NewService(unitsRepo, ledgerService, kpi.Config{Currency: cfg.LedgerCurrency})
	kpiHandler := kpi.NewHandler(logger, kpiService)

	renewalRepo := renewal.NewRepository(pool)
	renewalService := renewal.NewService(renewalRepo, renewalRepo, conflictGuard, ledgerService, channelClient, auditor, renewal.Config{
		RenewalWindowDays: cfg.RenewalWindowDays,
		APISafeForWrites:  cfg.Beds24WritesEnabled,
	})
	renewalHandler := renewal.NewHandler(logger, renewalService)

	idempotencyStore := shared.NewIdempotencyStore(pool)
	webhookService := webhook.NewService(idempotencyStore, ledgerService, metrics)
	webhookHandler := webhook.NewHandler(logger, webhookService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledgerHandler,
		OccupancyHandler: occupancyHandler,
		UnitsHandler:     unitsHandler,
		RenewalHandler:   renewalHandler,
		KPIHandler:       kpiHandler,
		AuditHandler:     auditHandler,
		WebhookHandler:   webhookHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
