package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "solaccess:effective:version"

// Cache stores per-user effective decision maps in Redis. Keys embed a
// namespace version: role-permission mutations bump the version, which
// orphans every cached map at once without scanning; override and
// assignment mutations delete the single affected user's key. A cache
// failure degrades to a direct store read, never to a wrong answer.
type Cache struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache constructs a Cache.
func NewCache(logger *slog.Logger, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{logger: logger, client: client, ttl: ttl}
}

// GetOrBuild returns the cached decision map for the user, building and
// storing it on a miss. Concurrent builds for the same user collapse into
// one via singleflight.
func (c *Cache) GetOrBuild(ctx context.Context, userID int64, build func(context.Context) (map[string]Decision, error)) (map[string]Decision, error) {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		c.logger.Warn("decision cache unavailable", slog.Any("error", err))
		return build(ctx)
	}

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached map[string]Decision
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("decision cache read", slog.Any("error", err))
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		built, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(built); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("decision cache write", slog.Any("error", err))
			}
		}
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(map[string]Decision), nil
}

// InvalidateAll bumps the namespace version, orphaning every cached map.
// Stale entries expire with their TTL.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// InvalidateUser removes one user's cached map under the current version.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) userKey(ctx context.Context, userID int64) (string, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		version = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("solaccess:effective:v%d:%d", version, userID), nil
}
