package cache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueryCache implements QueryCache using Redis. Entries are bounded
// by TTL; Redis's own maxmemory policy covers the size bound in prod.
type RedisQueryCache struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisQueryCache creates a Redis-backed cache.
func NewRedisQueryCache(client *redis.Client, config RedisConfig) *RedisQueryCache {
	return &RedisQueryCache{
		client: client,
		prefix: config.Prefix,
	}
}

// key builds the final Redis key with prefix.
func (c *RedisQueryCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a value from the Redis cache.
// On Redis error, it returns (nil, false, err) so the caller can log and
// treat it as a miss.
func (c *RedisQueryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		// Key does not exist - a clean miss.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	return res, true, nil
}

// Set stores a value with TTL. The insert is first-writer-wins (SETNX);
// if the key already holds a different value, ErrConflict is returned and
// the stored value is untouched. ttl <= 0 does nothing.
func (c *RedisQueryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if ttl <= 0 {
		return nil
	}

	redisKey := c.key(key)

	stored, err := c.client.SetNX(ctx, redisKey, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if stored {
		return nil
	}

	existing, err := c.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		// Expired between SETNX and GET; retry once.
		if err := c.client.SetNX(ctx, redisKey, value, ttl).Err(); err != nil {
			return fmt.Errorf("redis setnx failed: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if !bytes.Equal(existing, value) {
		return ErrConflict
	}
	return nil
}

// Delete removes a key from the cache.
func (c *RedisQueryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// Exists checks if a key exists without retrieving the value.
func (c *RedisQueryCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}
	count, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return count > 0, nil
}

// Ping checks if the Redis connection is healthy.
func (c *RedisQueryCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}
