package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fx-blockstream/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Get retrieves a cached create response by key.
// Returns nil, nil if the key does not exist.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decoding idempotency record %s: %w", key, err)
	}
	return &rec, nil
}

// Reserve claims key with a pending record for lease. It reports false when
// the key is already reserved or completed.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, lease time.Duration) (bool, error) {
	val, err := json.Marshal(&domain.IdempotencyRecord{Key: key, Pending: true, CreatedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("encoding idempotency reservation %s: %w", key, err)
	}
	ok, err := c.client.SetNX(ctx, c.prefix+key, val, lease).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

// Set stores a create response with TTL, replacing the reservation.
func (c *IdempotencyCache) Set(ctx context.Context, rec *domain.IdempotencyRecord, ttl time.Duration) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding idempotency record %s: %w", rec.Key, err)
	}
	if err := c.client.Set(ctx, c.prefix+rec.Key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Release drops a reservation whose create failed so the client can retry.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
