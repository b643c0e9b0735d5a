package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatbridge/internal/metrics"
	"chatbridge/pkg/logging/logging"
)

// LoggingQueryCache wraps a QueryCache with logging + metrics. This is the
// observability hook for every lookup: hit/miss plus latency.
type LoggingQueryCache struct {
	inner QueryCache
}

// NewLoggingQueryCache returns a cache that logs and records metrics.
func NewLoggingQueryCache(inner QueryCache) QueryCache {
	return &LoggingQueryCache{inner: inner}
}

func (c *LoggingQueryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	elapsed := time.Since(start)
	latencyMs := float64(elapsed.Microseconds()) / 1000.0

	metrics.CacheLookupSeconds.Observe(elapsed.Seconds())

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("session_id", parts.sessionID),
			zap.String("hash", parts.hash),
		)
	}

	if err != nil {
		logger.Error("query_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("query_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingQueryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Float64("latency_ms", latencyMs),
	}

	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("session_id", parts.sessionID),
			zap.String("hash", parts.hash),
		)
	}

	switch {
	case errors.Is(err, ErrConflict):
		metrics.CacheConflictsTotal.Inc()
		logger.Error("query_cache_conflict", fields...)
	case err != nil:
		logger.Error("query_cache_set", append(fields, zap.Error(err))...)
	default:
		logger.Info("query_cache_set", fields...)
	}

	return err
}

type keyParts struct {
	sessionID string
	hash      string
}

// Expecting: chat:<SESSION_ID>:<HASH>
func parseKey(key string) (keyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "chat" {
		return keyParts{}, false
	}
	return keyParts{
		sessionID: parts[1],
		hash:      parts[2],
	}, true
}
