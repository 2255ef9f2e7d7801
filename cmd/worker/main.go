package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/kidipark/kidipark/internal/app"
	"github.com/kidipark/kidipark/internal/branches"
	"github.com/kidipark/kidipark/internal/platform/cache"
	"github.com/kidipark/kidipark/internal/platform/db"
	"github.com/kidipark/kidipark/internal/reports"
	"github.com/kidipark/kidipark/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	branchRepo := branches.NewRepository(pool)
	resolver := branches.NewResolver(branchRepo, cfg.DefaultTimezone)

	reportSvc := reports.NewService(
		reports.NewPGRepository(pool),
		reports.NewCache(redisClient, logger),
		resolver,
		logger,
	)
	reportSvc.WithTTLs(reports.TTLSet{
		Live:     cfg.ReportTTLLive,
		Standard: cfg.ReportTTLStandard,
		Slow:     cfg.ReportTTLSlow,
	})

	warmupJob := jobs.NewWarmupJob(branchRepo, reportSvc, logger)
	anomalyJob := jobs.NewArqueoScanJob(reportSvc, logger)

	warmupTask, err := jobs.NewReportsWarmupTask(jobs.ReportsWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	anomalyTask, err := jobs.NewArqueoAnomalyScanTask(jobs.ArqueoAnomalyScanPayload{})
	if err != nil {
		logger.Error("build anomaly task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskArqueoAnomalyScan, Handler: anomalyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Warm every branch before opening hours, Mexico City morning.
			{Spec: "0 13 * * *", Task: warmupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
			// Scan day-close differences after the nightly close.
			{Spec: "30 6 * * *", Task: anomalyTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("kidipark worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("kidipark worker stopped")
}
