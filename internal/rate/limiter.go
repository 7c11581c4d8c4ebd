package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window budget of Max hits per Period.
type Window struct {
	Max    int
	Period time.Duration
}

// Limiter counts hits per key under a shared prefix.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	window Window
}

// New returns a limiter for keys under prefix.
func New(rdb redis.UniversalClient, prefix string, w Window) *Limiter {
	return &Limiter{redis: rdb, prefix: prefix, window: w}
}

func (l *Limiter) key(k string) string { return l.prefix + ":" + k }

// Hit records one hit on k and returns ErrRateLimited when the window's
// budget is exceeded.
func (l *Limiter) Hit(ctx context.Context, k string) error {
	if l == nil || l.window.Max <= 0 {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(k)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(k), l.window.Period).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(l.window.Max) {
		return ErrRateLimited
	}
	return nil
}

// Check reports ErrRateLimited when k has already spent its budget, without
// recording a hit.
func (l *Limiter) Check(ctx context.Context, k string) error {
	if l == nil || l.window.Max <= 0 {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(k)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.window.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counters of keys.
func (l *Limiter) Reset(ctx context.Context, keys ...string) error {
	if l == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = l.key(k)
	}
	if err := l.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
