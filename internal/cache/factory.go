package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend    string // "memory" or "redis"
	TTL        time.Duration
	MaxEntries int // memory backend only; <= 0 means uncapped
	Prefix     string
}

func NewQueryCache(cfg Config, redisClient *redis.Client) QueryCache {
	switch cfg.Backend {
	case "redis":
		return NewRedisQueryCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryQueryCache(cfg.TTL, cfg.MaxEntries)
	}
}
