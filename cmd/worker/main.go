package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sol-suite/sol-access/internal/access"
	"github.com/sol-suite/sol-access/internal/app"
	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/roles"
	"github.com/sol-suite/sol-access/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	catalogSvc := catalog.NewService(catalog.NewRepository(pool))
	rolesRepo := roles.NewRepository(pool)
	overridesRepo := overrides.NewRepository(pool)
	overridesSvc := overrides.NewService(logger, overridesRepo, nil, nil)

	decisionCache := access.NewCache(logger, redisClient, cfg.DecisionCacheTTL)
	engine := access.NewEngine(logger, catalogSvc, rolesRepo, overridesSvc, decisionCache, nil)

	purgeJob := jobs.NewOverridePurgeJob(overridesRepo, logger)
	warmupJob := jobs.NewCacheWarmupJob(overridesRepo, func(ctx context.Context, userID int64) error {
		_, err := engine.EffectivePermissions(ctx, userID)
		return err
	}, logger)

	purgeTask, err := jobs.NewOverridePurgeTask(jobs.OverridePurgePayload{RetentionDays: cfg.OverrideRetentionDays})
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverridePurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
