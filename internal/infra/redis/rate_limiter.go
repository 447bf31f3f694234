package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const rateLimitPrefix = "rate_limit"

// RateLimiter counts hits per key in fixed windows. The first hit of a window
// starts its TTL; a limit of zero or less disables the check.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter with no ttl would lock the user out for good
			_ = r.client.Del(ctx, key)
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// UserCommandKey scopes a counter to one user and one kind of update
// ("message", "cb", or a command name).
func UserCommandKey(userID int64, kind string) string {
	return rateLimitPrefix + ":" + strconv.FormatInt(userID, 10) + ":" + kind
}
