package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rentzentro/platform/pkg/logging"
)

// RedisCache shares listing payloads across instances through Redis.
// Backend failures log and fall through to the loader so a Redis
// outage slows the public site down instead of taking it down.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisCache wraps an existing Redis client. ttl <= 0 uses
// DefaultTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (r *RedisCache) Get(ctx context.Context, key string, loader Loader) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.logger.WithError(err).WithField("key", key).Warn("Redis get failed, serving from database")
	}

	payload, ok, err := loader(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Redis set failed, entry not cached")
	}
	return payload, true, nil
}

func (r *RedisCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.WithError(err).WithField("keys", keys).Warn("Redis invalidate failed, entries expire by TTL")
	}
}
