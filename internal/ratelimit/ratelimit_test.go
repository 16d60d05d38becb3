package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		r, err := l.Allow(ctx, "tok1", 3, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Allowed {
			t.Fatalf("request %d should be allowed within limit 3", i)
		}
	}

	r, err := l.Allow(ctx, "tok1", 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Allowed {
		t.Fatal("4th request should exceed limit 3")
	}
	if r.Remaining != 0 {
		t.Fatalf("expected zero remaining once exceeded, got %d", r.Remaining)
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(ctx, "tok2", 2, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if r, _ := l.Allow(ctx, "tok2", 2, time.Minute); r.Allowed {
		t.Fatal("3rd request in the same window should be denied")
	}

	now = now.Add(2 * time.Minute)
	r, err := l.Allow(ctx, "tok2", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Allowed {
		t.Fatal("request in a new window should be allowed again")
	}
}

func TestMemoryLimiterBucketsAreIsolatedPerKey(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	if _, err := l.Allow(ctx, "tok-a", 1, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := l.Allow(ctx, "tok-b", 1, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Allowed {
		t.Fatal("a different bucket key must have its own independent counter")
	}
}

type fakeRedis struct {
	counts map[string]int64
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) TTL(_ context.Context, key string) (time.Duration, error) {
	return f.ttls[key], nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func TestRedisLimiterSetsExpiryOnlyOnFirstIncrement(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLimiter(fake)
	ctx := context.Background()

	if _, err := l.Allow(ctx, "tok1", 5, 30*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Allow(ctx, "tok1", 5, 30*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.counts["ratelimit:tok1"]; got != 2 {
		t.Fatalf("expected counter at 2, got %d", got)
	}
	if ttl := fake.ttls["ratelimit:tok1"]; ttl != 30*time.Second {
		t.Fatalf("expected TTL set to the window on first increment, got %v", ttl)
	}
}

func TestRedisLimiterDeniesOverLimit(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLimiter(fake)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(ctx, "tok2", 2, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	r, err := l.Allow(ctx, "tok2", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Allowed {
		t.Fatal("3rd request should exceed limit 2")
	}
}
