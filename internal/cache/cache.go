// Package cache is the simple get/set/invalidate key-value collaborator used
// to serve order tracking reads. Cached values are never authoritative for
// status transitions; all business logic reads the order store directly.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderTrackingKey is the cache key for an order's tracking view. Every
// order or shipment mutation invalidates it.
func OrderTrackingKey(orderID string) string {
	return "order:tracking:" + orderID
}

// Store is a minimal key-value cache. Get reports a miss with found=false and
// a nil error; errors are reserved for transport failures.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Redis implements Store on a Redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis store from a redis URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity, for readiness checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Noop is a Store that caches nothing. Used when no cache is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Invalidate(context.Context, ...string) error              { return nil }

// InvalidateLogged invalidates keys and logs failures instead of returning
// them. Cache invalidation is best effort on every mutation path.
func InvalidateLogged(ctx context.Context, store Store, keys ...string) {
	if err := store.Invalidate(ctx, keys...); err != nil {
		zctx.From(ctx).Warn("cache invalidation failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}
