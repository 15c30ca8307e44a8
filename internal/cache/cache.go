// Package cache stores per-checker results in redis, keyed by a fingerprint
// of checker name and canonical input. Cache failures never fail a request;
// they degrade to misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/model"
)

const keyPrefix = "agrocheck:result"

// Client is the subset of the redis client used by the result cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// ResultCache caches checker results with per-checker TTLs.
type ResultCache struct {
	client  Client
	enabled bool
}

// NewResultCache creates a ResultCache. A nil client disables caching.
func NewResultCache(client Client, enabled bool) *ResultCache {
	return &ResultCache{client: client, enabled: enabled && client != nil}
}

// NewRedisClient parses a redis URL and returns a connected client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	return redis.NewClient(opts), nil
}

// Fingerprint derives the deterministic cache key for a checker and
// canonical input value.
func Fingerprint(checkerName, canonicalValue string) string {
	h := sha256.Sum256([]byte(canonicalValue))
	return fmt.Sprintf("%s:%s:%x", keyPrefix, checkerName, h[:16])
}

// Get returns the cached result for the fingerprint, or (nil, false) on miss.
// Errors are logged and reported as misses.
func (c *ResultCache) Get(ctx context.Context, checkerName, canonicalValue string) (*model.CheckerResult, bool) {
	if !c.enabled {
		return nil, false
	}

	key := Fingerprint(checkerName, canonicalValue)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: get failed", zap.String("checker", checkerName), zap.Error(err))
		}
		return nil, false
	}

	var result model.CheckerResult
	if err := json.Unmarshal(data, &result); err != nil {
		zap.L().Warn("cache: corrupt entry", zap.String("checker", checkerName), zap.Error(err))
		return nil, false
	}
	return &result, true
}

// Set stores a result under the checker's TTL. Errors are logged only.
func (c *ResultCache) Set(ctx context.Context, checkerName, canonicalValue string, result *model.CheckerResult, ttl time.Duration) {
	if !c.enabled || result == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("cache: marshal failed", zap.String("checker", checkerName), zap.Error(err))
		return
	}

	key := Fingerprint(checkerName, canonicalValue)
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		zap.L().Warn("cache: set failed", zap.String("checker", checkerName), zap.Error(err))
	}
}

// Ping verifies cache reachability for health reporting.
func (c *ResultCache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
