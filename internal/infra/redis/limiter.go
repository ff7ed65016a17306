package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowLimiter counts hits per key in fixed windows.
type WindowLimiter struct {
	rdb    redis.Cmdable
	prefix string
	window time.Duration
}

// NewWindowLimiter returns a limiter whose counters live under prefix and
// expire after window.
func NewWindowLimiter(rdb redis.Cmdable, prefix string, window time.Duration) *WindowLimiter {
	return &WindowLimiter{rdb: rdb, prefix: prefix, window: window}
}

// Hit records one request for key and returns the count in the current window
// together with the time the window resets.
func (l *WindowLimiter) Hit(ctx context.Context, key string) (int64, time.Time, error) {
	k := l.prefix + ":" + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: rate limit %s: %w", k, err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = l.window
	}
	return incr.Val(), time.Now().Add(remaining), nil
}
