// Package ratelimit bounds per-user request rates on the grading
// endpoint. Grading calls fan out to a paid model backend, so the limit
// is enforced before any provider work starts.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrExhausted is returned when the caller is over their window limit.
var ErrExhausted = errors.New("rate limit exhausted")

// Limiter admits or rejects one request for a key.
type Limiter interface {
	// Allow returns nil when the request may proceed, ErrExhausted when
	// the key is over its limit.
	Allow(ctx context.Context, key string) error
}

// RedisLimiter is a fixed-window counter in Redis, shared across engine
// replicas.
type RedisLimiter struct {
	rdb    *goredis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter creates a limiter admitting limit requests per key per
// window.
func NewRedisLimiter(rdb *goredis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	rkey := l.prefix + key

	count, err := l.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, rkey, l.window).Err(); err != nil {
			return fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	if count > int64(l.limit) {
		return ErrExhausted
	}
	return nil
}

// MemoryLimiter is a single-process fixed-window counter. Used when no
// Redis address is configured.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	limit  int
	window time.Duration
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	n     int
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counts: make(map[string]*windowCount),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, ok := l.counts[key]
	if !ok || now.Sub(wc.start) >= l.window {
		l.counts[key] = &windowCount{start: now, n: 1}
		return nil
	}
	wc.n++
	if wc.n > l.limit {
		return ErrExhausted
	}
	return nil
}
