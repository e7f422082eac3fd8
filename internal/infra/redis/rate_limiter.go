package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter shared by every app instance.
type RateLimiter struct {
	client RedisClient
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: "rate_limit:", limit: limit, window: window}
}

// Allow counts one attempt for key. The window starts with the first attempt.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}

func (r *RateLimiter) Close() error { return r.client.Close() }
