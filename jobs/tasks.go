package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverridePurge hard-deletes override rows long past their expiry.
	TaskOverridePurge = "access:override_purge"
	// TaskCacheWarmup rebuilds cached decision maps for known users.
	TaskCacheWarmup = "access:cache_warmup"
)

// OverridePurgePayload configures the purge window.
type OverridePurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewOverridePurgeTask constructs an Asynq task.
func NewOverridePurgeTask(payload OverridePurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverridePurge, data), nil
}

// CacheWarmupPayload limits how many users one warmup run touches.
type CacheWarmupPayload struct {
	MaxUsers int `json:"max_users"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
