// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// increments the window counter, arming the expiry on the first hit,
// returns the count and the remaining ttl in milliseconds
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

const (
	// prefix for the redis keys holding the counters
	redisKeyPrefix = "mcp-gateway:rl:"

	// upper bound on a single redis round trip
	redisTimeout = 2 * time.Second
)

// RedisLimiter is a fixed window limiter sharing its counters across
// gateway replicas through redis. When redis is unreachable it falls
// back to a process local limiter rather than admitting everything.
type RedisLimiter struct {
	client   redis.UniversalClient
	limit    int
	window   time.Duration
	now      func() time.Time
	fallback *MemoryLimiter
	logger   *zap.Logger
}

// NewRedis creates a redis backed limiter admitting limit requests per
// window for every key
func NewRedis(client redis.UniversalClient, limit int, win time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := NewMemory(limit, win)
	return &RedisLimiter{
		client:   client,
		limit:    fallback.limit,
		window:   fallback.window,
		now:      time.Now,
		fallback: fallback,
		logger:   logger,
	}
}

// Allow counts the request against the key in redis
func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, l.client, []string{redisKeyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) < 2 {
		l.logger.Warn("redis rate limit check failed, using local limiter",
			zap.String("key", key),
			zap.Error(err),
		)
		return l.fallback.Allow(ctx, key)
	}

	count, ttl := int(res[0]), res[1]
	if ttl < 0 {
		ttl = l.window.Milliseconds()
	}

	return Decision{
		Allowed:   count <= l.limit,
		Count:     count,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
		ResetAt:   l.now().Add(time.Duration(ttl) * time.Millisecond),
	}
}

var _ Limiter = (*RedisLimiter)(nil)
