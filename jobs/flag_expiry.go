package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/Nzyn/adavao-sub004/internal/jobs"
	"github.com/Nzyn/adavao-sub004/internal/moderation"
	"github.com/Nzyn/adavao-sub004/internal/notify"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// FlagStore is the slice of the moderation repository the sweep needs.
type FlagStore interface {
	DueFlags(ctx context.Context, asOf time.Time) ([]moderation.Flag, error)
	ExpireFlagCascade(ctx context.Context, flag moderation.Flag, asOf time.Time) (remaining int, changed bool, err error)
}

// FlagExpiryJob transitions flags past their expiry date, lifts the matching
// restrictions, rewrites user rollups, and emits one flag_expired event per
// transition.
type FlagExpiryJob struct {
	Store   FlagStore
	Emitter notify.Emitter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewFlagExpiryJob initialises the expiry sweep handler.
func NewFlagExpiryJob(store FlagStore, emitter notify.Emitter, logger *slog.Logger, metrics *jobmetrics.Metrics) *FlagExpiryJob {
	return &FlagExpiryJob{
		Store:   store,
		Emitter: emitter,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep. The snapshot timestamp is taken once so a long
// batch never re-evaluates the due predicate mid-run; flags expiring during
// the run wait for the next one.
func (j *FlagExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("flag expiry: handler not configured")
	}
	var payload ExpireFlagsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	now := j.now()
	runID := uuid.NewString()
	tracker := j.metrics().Track(TaskModerationExpireFlags)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", runID))
	logger.Info("checking for expired user flags")

	flags, err := j.Store.DueFlags(ctx, now)
	if err != nil {
		resultErr = err
		logger.Error("list due flags", slog.Any("error", err))
		return resultErr
	}

	if payload.DryRun {
		logger.Info("dry run, no transitions", slog.Int("due_flags", len(flags)))
		return nil
	}

	expired := 0
	for _, flag := range flags {
		remaining, changed, err := j.Store.ExpireFlagCascade(ctx, flag, now)
		if err != nil {
			// Transient store failure: abandon this flag for the
			// run; the transition is idempotent and the next sweep
			// retries it.
			logger.Error("expire flag",
				slog.Int64("flag_id", flag.ID),
				slog.Int64("user_id", flag.UserID),
				slog.Any("error", err),
			)
			continue
		}
		if !changed {
			// Already expired by an earlier run or a concurrent
			// unflag. No event.
			continue
		}
		expired++

		j.emit(ctx, logger, flag, now, remaining)

		logger.Info("flag expired automatically",
			slog.Int64("flag_id", flag.ID),
			slog.Int64("user_id", flag.UserID),
			slog.Int("remaining_flags", remaining),
		)
	}

	j.metrics().AddExpiredFlags(expired)
	logger.Info("expiry sweep completed",
		slog.Int("due_flags", len(flags)),
		slog.Int("expired", expired),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

// emit hands the flag_expired event off. State is already committed; a failed
// hand-off is logged, never rolled back, so re-running the sweep stays a
// no-op for this flag.
func (j *FlagExpiryJob) emit(ctx context.Context, logger *slog.Logger, flag moderation.Flag, expiredAt time.Time, remaining int) {
	if j.Emitter == nil {
		return
	}
	event := notify.ModerationEvent{
		UserID:  flag.UserID,
		Kind:    notify.KindFlagExpired,
		Message: moderation.ExpiredMessage,
		Data: map[string]any{
			"flag_id":         flag.ID,
			"violation_type":  flag.ViolationType,
			"expired_at":      expiredAt.Format(time.RFC3339),
			"remaining_flags": remaining,
		},
	}
	if err := j.Emitter.Create(ctx, event); err != nil {
		logger.Error("emit flag_expired event",
			slog.Int64("flag_id", flag.ID),
			slog.Any("error", err),
		)
	}
}

func (j *FlagExpiryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskModerationExpireFlags))
	}
	return slog.Default().With(slog.String("job", TaskModerationExpireFlags))
}

func (j *FlagExpiryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FlagExpiryJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
