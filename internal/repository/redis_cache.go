package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const idempotencyKeyPrefix = "idempotency:"

// RedisReplayCache implements domain.ReplayCache using Redis
type RedisReplayCache struct {
	client *redis.Client
}

// NewRedisReplayCache creates a new Redis replay cache
func NewRedisReplayCache(client *redis.Client) *RedisReplayCache {
	return &RedisReplayCache{
		client: client,
	}
}

// GetResponse returns the cached body for correlationID or domain.ErrCacheMiss
func (r *RedisReplayCache) GetResponse(ctx context.Context, correlationID string) ([]byte, error) {
	key := idempotencyKeyPrefix + correlationID

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return nil, domain.ErrCacheMiss
		}
		span.RecordError(err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	if len(data) == 0 {
		span.SetAttributes(attribute.String("cache.result", "miss"))
		return nil, domain.ErrCacheMiss
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	return data, nil
}

// SetResponse stores body with TTL
func (r *RedisReplayCache) SetResponse(ctx context.Context, correlationID string, body []byte, ttl time.Duration) error {
	key := idempotencyKeyPrefix + correlationID

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	if err := r.client.Set(ctx, key, body, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}
