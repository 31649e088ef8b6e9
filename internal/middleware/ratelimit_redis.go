package middleware

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces rate limit counters in a shared Redis.
const redisKeyPrefix = "legvotes:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// in Redis, so limits hold across API replicas. Redis failures fail open:
// the request is allowed and the error is counted.
type RedisRateLimitStore struct {
	client  redis.Cmdable
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis backed store. metrics may be nil.
func NewRedisRateLimitStore(client redis.Cmdable, metrics *Metrics) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, metrics: metrics}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := redisKeyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		s.failOpen(key, err)
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	window := ttl.Val()
	if window < 0 {
		// First request of a window, or a counter that lost its expiry.
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			s.failOpen(key, err)
		}
		window = config.WindowDuration
	}

	if count > config.RequestsPerWindow {
		return false, 0, retryAfterSeconds(window)
	}
	return true, config.RequestsPerWindow - count, 0
}

func (s *RedisRateLimitStore) failOpen(key string, err error) {
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
	slog.Warn("rate limit store unavailable, allowing request",
		"key", key,
		"error", err,
	)
}
