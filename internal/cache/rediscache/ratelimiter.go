package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter: fixed window на INCR.
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterFromClient(redis.NewClient(&redis.Options{Addr: addr}), "rl")
}

func NewRateLimiterFromClient(c *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{c: c, prefix: prefix}
}

// Allow делает INCR по ключу и обновляет TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowPerMinute считает попытки в окне текущей минуты (UTC).
func (rl *RateLimiter) AllowPerMinute(ctx context.Context, name string, limit int64, now time.Time) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("%s:%s:%s", rl.prefix, name, now.UTC().Format("200601021504"))
	ok, _, err := rl.Allow(ctx, key, limit, 2*time.Minute)
	return ok, err
}
