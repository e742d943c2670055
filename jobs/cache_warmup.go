package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// UserLister enumerates users holding roles or overrides.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// CacheWarmupJob pre-builds cached decision maps so the first UI load after
// an invalidation does not pay the build cost.
type CacheWarmupJob struct {
	users  UserLister
	warm   func(ctx context.Context, userID int64) error
	logger *slog.Logger
}

// NewCacheWarmupJob initialises the warmup handler. warm is called once per
// user and is expected to populate the decision cache.
func NewCacheWarmupJob(users UserLister, warm func(ctx context.Context, userID int64) error, logger *slog.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{users: users, warm: warm, logger: logger}
}

// Handle executes the warmup.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.users == nil || j.warm == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxUsers <= 0 {
		payload.MaxUsers = 500
	}

	ids, err := j.users.ListUserIDs(ctx)
	if err != nil {
		j.logger.Error("cache warmup list users", slog.Any("error", err))
		return err
	}
	if len(ids) > payload.MaxUsers {
		ids = ids[:payload.MaxUsers]
	}

	warmed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := j.warm(ctx, id); err != nil {
			j.logger.Warn("cache warmup user", slog.Int64("user_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("cache warmup complete", slog.Int("warmed", warmed), slog.Int("total", len(ids)))
	return nil
}
