package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance runs housekeeping tasks.
	QueueMaintenance = "maintenance"

	// TaskBlacklistPrune removes expired token blacklist rows.
	TaskBlacklistPrune = "auth:blacklist_prune"
	// TaskBusinessWarmup preloads the first page of the business directory.
	TaskBusinessWarmup = "businesses:warmup"
)

// BlacklistPrunePayload describes a prune run. A zero Before means now.
type BlacklistPrunePayload struct {
	Before time.Time `json:"before,omitempty"`
}

// NewBlacklistPruneTask constructs an Asynq task.
func NewBlacklistPruneTask(payload BlacklistPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBlacklistPrune, data, asynq.Queue(QueueMaintenance), asynq.MaxRetry(3)), nil
}

// NewBusinessWarmupTask constructs an Asynq task.
func NewBusinessWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskBusinessWarmup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
