package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisAdapter adapts a *redis.Client to the narrow redisIncrExpirer
// surface RedisLimiter needs.
type GoRedisAdapter struct {
	Client *redis.Client
}

func (a GoRedisAdapter) Incr(ctx context.Context, key string) (int64, error) {
	return a.Client.Incr(ctx, key).Result()
}

func (a GoRedisAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return a.Client.TTL(ctx, key).Result()
}

func (a GoRedisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return a.Client.Expire(ctx, key, ttl).Err()
}
