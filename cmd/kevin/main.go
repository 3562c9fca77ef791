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
	"golang.org/x/sync/errgroup"

	"github.com/kevin-learn/kevin-server/internal/app"
	"github.com/kevin-learn/kevin-server/internal/auth"
	"github.com/kevin-learn/kevin-server/internal/exercises"
	"github.com/kevin-learn/kevin-server/internal/observability"
	"github.com/kevin-learn/kevin-server/internal/platform/cache"
	"github.com/kevin-learn/kevin-server/internal/platform/db"
	"github.com/kevin-learn/kevin-server/internal/solutions"
	"github.com/kevin-learn/kevin-server/internal/users"
	"github.com/kevin-learn/kevin-server/jobs"
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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	revocation := auth.NewRevocationStore(redisClient)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, codec, revocation)
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, cfg.MaxItemsReturned)
	usersHandler := users.NewHandler(logger, usersService, authMiddleware)

	exercisesRepo := exercises.NewRepository(pool)
	exercisesService := exercises.NewService(exercisesRepo, cfg.MaxItemsReturned)
	exercisesHandler := exercises.NewHandler(logger, exercisesService, authMiddleware)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	solutionsRepo := solutions.NewRepository(pool)
	solutionsService := solutions.NewService(solutionsRepo, exercisesService, queue, cfg.MaxItemsReturned)
	solutionsHandler := solutions.NewHandler(logger, solutionsService, authMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		ExercisesHandler: exercisesHandler,
		SolutionsHandler: solutionsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
