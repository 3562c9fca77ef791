package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/kevin-learn/kevin-server/internal/app"
	"github.com/kevin-learn/kevin-server/internal/exercises"
	"github.com/kevin-learn/kevin-server/internal/platform/db"
	"github.com/kevin-learn/kevin-server/internal/solutions"
	"github.com/kevin-learn/kevin-server/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	exercisesRepo := exercises.NewRepository(pool)
	exercisesService := exercises.NewService(exercisesRepo, cfg.MaxItemsReturned)

	solutionsRepo := solutions.NewRepository(pool)
	grader := solutions.NewService(solutionsRepo, exercisesService, queue, cfg.MaxItemsReturned)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Grader:    grader,
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
