package ratelimit

import (
	"context"
	"time"

	"backoffice/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// redisLimiter is a fixed window counter shared by every replica.
type redisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter counts requests per key with INCR and starts the window with EXPIRE on the first hit.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) service.RateLimiter {
	return &redisLimiter{client: client, limit: limit, window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (service.RateDecision, error) {
	redisKey := keyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return service.RateDecision{}, errors.Wrap(err, "rate limit incr")
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return service.RateDecision{}, errors.Wrap(err, "rate limit expire")
		}
	}

	if count <= int64(l.limit) {
		return service.RateDecision{Allowed: true, Remaining: l.limit - int(count)}, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return service.RateDecision{}, errors.Wrap(err, "rate limit ttl")
	}
	// A key left without expiry by a crash between INCR and EXPIRE would block forever.
	if ttl < 0 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return service.RateDecision{}, errors.Wrap(err, "rate limit expire")
		}
		ttl = l.window
	}

	return service.RateDecision{Allowed: false, RetryAfter: ttl}, nil
}
