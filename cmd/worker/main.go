package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/miniintern/bizboard/internal/app"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/businesses"
	"github.com/miniintern/bizboard/internal/observability"
	"github.com/miniintern/bizboard/internal/platform/cache"
	"github.com/miniintern/bizboard/internal/platform/db"
	"github.com/miniintern/bizboard/internal/token"
	"github.com/miniintern/bizboard/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	directory := businesses.NewService(
		businesses.NewRepository(pool),
		authz.NewEngine(cfg.Policy()),
		cache.NewVersioned(redisClient, app.BusinessCacheNamespace, cfg.BusinessCacheTTL),
		cfg.PageSize, nil, logger,
	)

	// Redis entries expire on their own, so only the table backend is pruned.
	var handlers []jobs.TaskHandler
	var cron []jobs.CronRegistration
	if cfg.BlacklistBackend == app.BlacklistPostgres {
		pruneJob := jobs.NewBlacklistPruneJob(token.NewPGBlacklist(pool), logger, metrics.Jobs())
		pruneTask, err := jobs.NewBlacklistPruneTask(jobs.BlacklistPrunePayload{})
		if err != nil {
			logger.Error("build prune task", slog.Any("error", err))
			os.Exit(1)
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskBlacklistPrune, Handler: pruneJob.Handle})
		cron = append(cron, jobs.CronRegistration{Spec: cfg.BlacklistPruneCron, Task: pruneTask})
	}
	warmupJob := jobs.NewBusinessWarmupJob(directory, logger, metrics.Jobs())
	handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskBusinessWarmup, Handler: warmupJob.Handle})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
