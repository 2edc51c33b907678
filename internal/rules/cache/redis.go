package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "lendgate/internal/platform/redis"

	"lendgate/internal/domain"
)

const keyPrefix = "lendgate:rules:active:"

// RedisCache shares the active rule version across processes. All failures
// degrade to a miss; the engine then reads through to the store.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, ruleSet string) *domain.RuleVersion {
	payload, err := c.client.Get(ctx, keyPrefix+ruleSet).Bytes()
	if err != nil {
		return nil
	}
	var version domain.RuleVersion
	if err := json.Unmarshal(payload, &version); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "corrupt rule version cache entry", "rule_set", ruleSet, "error", err)
		}
		return nil
	}
	return &version
}

func (c *RedisCache) Set(ctx context.Context, version domain.RuleVersion) {
	payload, err := json.Marshal(version)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+version.RuleSet, payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "rule version cache write failed", "rule_set", version.RuleSet, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, ruleSet string) {
	if err := c.client.Del(ctx, keyPrefix+ruleSet).Err(); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "rule version cache invalidation failed", "rule_set", ruleSet, "error", err)
	}
}
