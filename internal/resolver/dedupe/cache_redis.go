package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "dedup:"

// RedisCache shares the dedup window across tracker instances. SET NX with
// TTL gives the atomic check-and-record in one round trip.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SeenAndRecord atomically checks and records key.
func (c *RedisCache) SeenAndRecord(ctx context.Context, key string, window time.Duration) (bool, error) {
	set, err := c.client.SetNX(ctx, dedupeKeyPrefix+key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe record: %w", err)
	}
	return !set, nil
}

// Forget drops key.
func (c *RedisCache) Forget(ctx context.Context, key string) error {
	return c.client.Del(ctx, dedupeKeyPrefix+key).Err()
}
