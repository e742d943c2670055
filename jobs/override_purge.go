package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OverridePurger deletes override rows whose expiry passed the retention
// window. Expired overrides are already invisible to resolution; the purge
// only reclaims rows no audit view needs anymore.
type OverridePurger interface {
	PurgeExpired(ctx context.Context, retentionDays int) (int64, error)
}

// OverridePurgeJob removes long-expired user permission overrides.
type OverridePurgeJob struct {
	store  OverridePurger
	logger *slog.Logger
}

// NewOverridePurgeJob initialises the purge handler.
func NewOverridePurgeJob(store OverridePurger, logger *slog.Logger) *OverridePurgeJob {
	return &OverridePurgeJob{store: store, logger: logger}
}

// Handle executes the purge.
func (j *OverridePurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.store == nil {
		return errors.New("override purge: handler not configured")
	}
	var payload OverridePurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 30
	}

	removed, err := j.store.PurgeExpired(ctx, payload.RetentionDays)
	if err != nil {
		j.logger.Error("override purge failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("override purge complete",
		slog.Int("retention_days", payload.RetentionDays),
		slog.Int64("removed", removed),
	)
	return nil
}
