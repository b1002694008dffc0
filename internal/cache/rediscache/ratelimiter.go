package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Счётчик и TTL ставятся одним скриптом: окно открывается первым запросом и не продлевается.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter is a fixed-window counter shared by all worker replicas, used to keep
// carrier API calls under the per-minute quota.
type RateLimiter struct {
	c redis.Scripter
}

func NewRateLimiter(c redis.Scripter) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow counts one call in the window identified by key and reports whether it fits into limit.
// The second result is the number of calls seen in the window so far.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	n, err := fixedWindowScript.Run(ctx, rl.c, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, errors.Wrapf(err, "rate limit %s", key)
	}
	return n <= limit, n, nil
}
