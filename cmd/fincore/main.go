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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/fincore/internal/app"
	"github.com/odyssey-erp/fincore/internal/counter"
	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/finance"
	financehttp "github.com/odyssey-erp/fincore/internal/finance/http"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/observability"
	"github.com/odyssey-erp/fincore/internal/periodlock"
	"github.com/odyssey-erp/fincore/internal/platform/cache"
	"github.com/odyssey-erp/fincore/internal/platform/db"
	"github.com/odyssey-erp/fincore/internal/report"
	reporthttp "github.com/odyssey-erp/fincore/internal/report/http"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	reportCache := report.NewCache(cfg.ReportCacheTTL)
	reportCache.SetObserver(metrics)
	broadcaster := report.NewBroadcaster(redisClient, cfg.ReportInvalidationChannel, logger)
	if err := broadcaster.Listen(ctx, reportCache.InvalidateAll); err != nil {
		logger.Warn("subscribe report invalidations", slog.Any("error", err))
	}
	invalidator := report.NewInvalidator(reportCache, broadcaster, jobClient, metrics, logger)

	var counterStore counter.Store = counter.NewPGStore(dbpool)
	if cfg.CounterBackend == app.CounterBackendRedis {
		counterStore = counter.NewRedisStore(redisClient, "")
	}

	currencyProvider := currency.NewProvider(currency.NewPGRepository(dbpool))
	lockStore := periodlock.NewPGStore(dbpool)
	ledgerService := ledger.NewService(ledger.NewPGRepository(dbpool), ledger.NewPGPartyDirectory(dbpool), currencyProvider, logger)

	financeService := finance.NewService(finance.Deps{
		Guard:       periodlock.NewGuard(lockStore),
		Locks:       periodlock.NewService(lockStore, shared.NewAuditLogger(dbpool), logger),
		Currency:    currencyProvider,
		Ledger:      ledgerService,
		Counter:     counter.NewService(counterStore),
		Documents:   documents.NewPGRegistry(dbpool),
		Branches:    documents.NewPGBranchDirectory(dbpool),
		Approvals:   shared.NewApprovalRecorder(dbpool),
		Idempotency: shared.NewIdempotencyStore(dbpool),
		Invalidator: invalidator,
		Observer:    metrics,
		Logger:      logger,
	})
	reportService := report.NewService(report.NewPGRepository(dbpool), reportCache, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		FinanceHandler: financehttp.NewHandler(logger, financeService),
		ReportHandler:  reporthttp.NewHandler(logger, reportService),
		JobHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
