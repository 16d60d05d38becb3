// Package ratelimit implements the fixed-window counter the Public Feed
// Endpoint uses to bound per-token request volume (C13).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed       bool
	Remaining     int
	ResetSeconds  int
}

// Limiter increments a fixed-window counter keyed by an opaque bucket key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// MemoryLimiter is an in-process fixed-window limiter backed by a mutex-
// guarded map, used for tests and single-process deployments where Redis
// isn't available.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count     int
	expiresAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.expiresAt) {
		b = &bucket{count: 0, expiresAt: now.Add(window)}
		l.buckets[key] = b
	}
	b.count++

	remaining := limit - b.count
	allowed := b.count <= limit
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:      allowed,
		Remaining:    remaining,
		ResetSeconds: int(b.expiresAt.Sub(now).Seconds()) + 1,
	}, nil
}

// RedisLimiter implements the same fixed window against Redis with
// INCR+EXPIRE, so the window survives across processes: the first
// increment on a key sets the window's TTL, every subsequent increment in
// the same window just bumps the counter.
type RedisLimiter struct {
	client redisIncrExpirer
}

// redisIncrExpirer is the slice of *redis.Client this package actually
// calls, kept narrow so tests can fake it without a live Redis.
type redisIncrExpirer interface {
	Incr(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

func NewRedisLimiter(client redisIncrExpirer) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	bucketKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, bucketKey)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, bucketKey, window); err != nil {
			return Result{}, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}

	ttl, err := l.client.TTL(ctx, bucketKey)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: ttl: %w", err)
	}
	resetSeconds := int(ttl.Seconds())
	if resetSeconds < 0 {
		resetSeconds = int(window.Seconds())
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:      int(count) <= limit,
		Remaining:    remaining,
		ResetSeconds: resetSeconds,
	}, nil
}
