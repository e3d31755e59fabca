package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Nzyn/adavao-sub004/internal/app"
	"github.com/Nzyn/adavao-sub004/internal/moderation"
	"github.com/Nzyn/adavao-sub004/internal/notify"
	"github.com/Nzyn/adavao-sub004/internal/platform/db"
	"github.com/Nzyn/adavao-sub004/internal/reports"
	"github.com/Nzyn/adavao-sub004/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	emitter := notify.NewPGEmitter(pool)
	moderationRepo := moderation.NewRepository(pool)
	expiryJob := jobs.NewFlagExpiryJob(moderationRepo, emitter, logger, nil)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, logger)
	rescoreJob := jobs.NewUrgencyRescoreJob(reportsService, logger, nil)

	expiryTask, err := jobs.NewExpireFlagsTask(jobs.ExpireFlagsPayload{})
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	rescoreTask, err := jobs.NewRecalculateUrgencyTask()
	if err != nil {
		logger.Error("build rescore task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskModerationExpireFlags, Handler: expiryJob.Handle},
			{Type: jobs.TaskReportsRecalculateUrgency, Handler: rescoreJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Unique keeps sweep runs from overlapping: if one is still
			// pending or executing, the next trigger is dropped.
			{Spec: cfg.FlagExpiryCron, Task: expiryTask, Options: []asynq.Option{asynq.Unique(time.Hour), asynq.MaxRetry(3)}},
			{Spec: cfg.UrgencyRescoreCron, Task: rescoreTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
