package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("amanlex/cache")

// keyPrefix namespaces every key written to a shared Redis.
const keyPrefix = "amanlex:answer:"

// RedisStore is a Store backed by Redis, used when several API replicas
// share generated answers.
type RedisStore struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	group singleflight.Group
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	// Concurrent misses for one key share a single round trip.
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.rdb.Get(ctx, keyPrefix+key).Result()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return v.(string), true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", r.ttl.Milliseconds()),
		))
	defer span.End()

	if err := r.rdb.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
