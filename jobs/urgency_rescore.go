package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Nzyn/adavao-sub004/internal/jobs"
	"github.com/Nzyn/adavao-sub004/internal/reports"
)

// UrgencyRescoreJob re-derives urgency scores for the full report set.
type UrgencyRescoreJob struct {
	Service *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewUrgencyRescoreJob initialises the recalculation handler.
func NewUrgencyRescoreJob(service *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *UrgencyRescoreJob {
	return &UrgencyRescoreJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the recalculation.
func (j *UrgencyRescoreJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("urgency rescore: handler not configured")
	}
	var payload RecalculateUrgencyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskReportsRecalculateUrgency)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting urgency score recalculation")

	stats, err := j.Service.RecalculateAll(ctx)
	if err != nil {
		resultErr = err
		logger.Error("recalculation failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddRescoredReports(stats.Updated)
	logger.Info("completed urgency score recalculation",
		slog.Int("processed", stats.Processed),
		slog.Int("updated", stats.Updated),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *UrgencyRescoreJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsRecalculateUrgency))
	}
	return slog.Default().With(slog.String("job", TaskReportsRecalculateUrgency))
}

func (j *UrgencyRescoreJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
