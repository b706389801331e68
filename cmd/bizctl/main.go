package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/miniintern/bizboard/cmd/bizctl/cli"
	"github.com/miniintern/bizboard/internal/app"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/board"
	"github.com/miniintern/bizboard/internal/platform/db"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/jobs"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitError
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "bizctl"))

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return cli.ExitError
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	moderation := board.NewService(board.NewRepository(pool), authz.NewEngine(cfg.Policy()),
		cfg.PageSize, shared.NewAuditLogger(pool), logger)

	ops := &cli.OpsCLI{
		Restorer:  moderation,
		Enqueuer:  client,
		Inspector: inspector,
		Migrate:   func() error { return db.MigrateUp(cfg.PGDSN, logger) },
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
	return ops.Run(ctx, os.Args[1:])
}
