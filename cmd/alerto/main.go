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
	"github.com/redis/go-redis/v9"

	"github.com/Nzyn/adavao-sub004/internal/app"
	"github.com/Nzyn/adavao-sub004/internal/moderation"
	"github.com/Nzyn/adavao-sub004/internal/notify"
	"github.com/Nzyn/adavao-sub004/internal/observability"
	"github.com/Nzyn/adavao-sub004/internal/platform/db"
	"github.com/Nzyn/adavao-sub004/internal/rbac"
	"github.com/Nzyn/adavao-sub004/internal/reports"
	"github.com/Nzyn/adavao-sub004/internal/shared"
	"github.com/Nzyn/adavao-sub004/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(pool)
	catalog := rbac.NewCatalogCache(rbacRepo, redisClient, cfg.CatalogCacheTTL, logger)
	resolver := rbac.NewResolver(catalog)
	rbacMW := rbac.Middleware{Authorizer: resolver, Roles: rbacRepo, Logger: logger}

	if err := rbac.SeedCatalog(ctx, rbacRepo, logger); err != nil {
		logger.Error("seed permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	if err := catalog.Invalidate(ctx); err != nil {
		logger.Warn("invalidate catalog cache", slog.Any("error", err))
	}

	emitter := notify.NewPGEmitter(pool)
	auditLogger := shared.NewAuditLogger(pool)

	moderationRepo := moderation.NewRepository(pool)
	moderationService := moderation.NewService(moderationRepo, emitter, auditLogger, logger)
	moderationHandler := moderation.NewHandler(logger, moderationService, rbacMW)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, rbacMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterConfig{
		Middleware: app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: metrics},
		RBAC:       rbacMW,
		Moderation: moderationHandler,
		Reports:    reportsHandler,
		Jobs:       jobsHandler,
		Metrics:    metrics,
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
