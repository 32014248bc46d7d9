// Package ratelimit implements fixed-window request limits keyed by caller.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"slingshot-be/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// DefaultWindow replaces non-positive windows.
const DefaultWindow = time.Minute

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return DefaultWindow
	}
	return window
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(count, limit int, window time.Duration, now time.Time) Decision {
	d := Decision{Allowed: count <= limit, Limit: limit, Remaining: limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = window - time.Duration(now.UnixNano()%int64(window))
	}
	return d
}

func windowKey(key string, window time.Duration, now time.Time) string {
	return "ratelimit:" + key + ":" + strconv.FormatInt(now.UnixNano()/int64(window), 10)
}

// RedisLimiter shares counters across instances through INCR + EXPIRE.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: windowOrDefault(window), now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	k := windowKey(key, l.window, now)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	return decide(int(incr.Val()), l.limit, l.window, now), nil
}

// MemoryLimiter keeps counters in process.
type MemoryLimiter struct {
	counters *cache.Cache
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	window = windowOrDefault(window)
	return &MemoryLimiter{
		counters: cache.New(window, 2*window),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	k := windowKey(key, l.window, now)

	// Add fails when the window already has a counter.
	_ = l.counters.Add(k, 0, l.window)
	count, err := l.counters.IncrementInt(k, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	return decide(count, l.limit, l.window, now), nil
}

// Fallback uses primary and degrades to secondary while primary errors.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    logger.ILogger
}

func NewFallback(primary, secondary Limiter, log logger.ILogger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: log}
}

func (f *Fallback) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := f.primary.Allow(ctx, key)
	if err == nil {
		return d, nil
	}
	f.logger.Warn("RateLimit", "Primary limiter unavailable, using in-memory counters", map[string]interface{}{
		"error": err.Error(),
	})
	return f.secondary.Allow(ctx, key)
}
