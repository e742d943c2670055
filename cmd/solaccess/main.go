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

	"github.com/sol-suite/sol-access/internal/access"
	"github.com/sol-suite/sol-access/internal/app"
	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/observability"
	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/platform/cache"
	"github.com/sol-suite/sol-access/internal/platform/db"
	"github.com/sol-suite/sol-access/internal/roles"
	"github.com/sol-suite/sol-access/internal/shared"
	"github.com/sol-suite/sol-access/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var decisionCache *access.Cache
	var jobsHandler *jobs.Handler
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, decision cache disabled", slog.Any("error", err))
	} else {
		decisionCache = access.NewCache(logger, redisClient, cfg.DecisionCacheTTL)
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		jobsHandler = jobs.NewHandler(inspector, logger)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	catalogSvc := catalog.NewService(catalog.NewRepository(pool))
	rolesRepo := roles.NewRepository(pool)
	overridesRepo := overrides.NewRepository(pool)

	var rolesInvalidator roles.Invalidator
	var overridesInvalidator overrides.Invalidator
	if decisionCache != nil {
		rolesInvalidator = decisionCache
		overridesInvalidator = decisionCache
	}
	rolesSvc := roles.NewService(logger, rolesRepo, auditLogger, rolesInvalidator)
	overridesSvc := overrides.NewService(logger, overridesRepo, auditLogger, overridesInvalidator)

	engine := access.NewEngine(logger, catalogSvc, rolesRepo, overridesSvc, decisionCache, metrics)
	guard := &access.Middleware{Engine: engine, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalog.NewHandler(logger, catalogSvc),
		RolesHandler:   roles.NewHandler(logger, rolesSvc, catalogSvc, guard.RequireAny),
		AccessHandler:  access.NewHandler(logger, engine, overridesSvc, guard),
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
