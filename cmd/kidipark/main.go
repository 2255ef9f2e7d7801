package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kidipark/kidipark/internal/app"
	"github.com/kidipark/kidipark/internal/branches"
	"github.com/kidipark/kidipark/internal/dashboard"
	"github.com/kidipark/kidipark/internal/forecast"
	"github.com/kidipark/kidipark/internal/platform/cache"
	"github.com/kidipark/kidipark/internal/platform/db"
	"github.com/kidipark/kidipark/internal/reports"
	reporthttp "github.com/kidipark/kidipark/internal/reports/http"
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

	forecastSvc := forecast.NewService(forecast.NewPGSessions(pool), resolver, logger)

	orchestrator := dashboard.NewOrchestrator(
		reportSvc,
		forecastSvc,
		dashboard.NewRedisCounterStore(redisClient),
		logger,
	)

	handler := reporthttp.NewHandler(logger, reportSvc, orchestrator)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: handler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kidipark reporting api listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
