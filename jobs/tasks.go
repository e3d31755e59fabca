package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskModerationExpireFlags sweeps flags past their expiry date.
	TaskModerationExpireFlags = "moderation:expire_flags"
	// TaskReportsRecalculateUrgency re-derives urgency scores for all reports.
	TaskReportsRecalculateUrgency = "reports:recalculate_urgency"
)

// ExpireFlagsPayload configures one expiry sweep run.
type ExpireFlagsPayload struct {
	// DryRun lists due flags without transitioning them.
	DryRun bool `json:"dry_run,omitempty"`
}

// NewExpireFlagsTask constructs the sweep task.
func NewExpireFlagsTask(payload ExpireFlagsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskModerationExpireFlags, data), nil
}

// RecalculateUrgencyPayload configures a full urgency recalculation.
type RecalculateUrgencyPayload struct{}

// NewRecalculateUrgencyTask constructs the recalculation task.
func NewRecalculateUrgencyTask() (*asynq.Task, error) {
	data, err := json.Marshal(RecalculateUrgencyPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsRecalculateUrgency, data), nil
}
