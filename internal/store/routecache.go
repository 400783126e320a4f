// internal/store/routecache.go
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"finchat-engine/internal/common/config"
	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

const routeKeyPrefix = "route:"

// defaultRouteTTL applies when the config leaves route_ttl unset.
const defaultRouteTTL = 15 * time.Minute

// RouteCache stores route classifications keyed by normalized query text so
// repeat queries skip the classification phase entirely.
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRouteCache wraps a Redis client with the configured TTL.
func NewRouteCache(client *redis.Client, cfg config.RedisConfig, log logger.Logger) *RouteCache {
	ttl := defaultRouteTTL
	if cfg.RouteTTL > 0 {
		ttl = time.Duration(cfg.RouteTTL) * time.Second
	}
	return &RouteCache{client: client, ttl: ttl, logger: log}
}

// Get returns the cached classification for a query, or nil when the key is
// absent. A corrupt entry is dropped and reported as a miss.
func (c *RouteCache) Get(ctx context.Context, query string) (*models.RouteClassification, error) {
	key := routeKey(query)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewCacheUnavailableError(err)
	}

	var route models.RouteClassification
	if err := json.Unmarshal([]byte(raw), &route); err != nil {
		c.logger.Warn("dropping corrupt route cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		c.client.Del(ctx, key)
		return nil, nil
	}
	return &route, nil
}

// Put stores a classification under the normalized query with the cache TTL.
func (c *RouteCache) Put(ctx context.Context, query string, route *models.RouteClassification) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return stderrors.NewCacheUnavailableError(err)
	}
	if err := c.client.Set(ctx, routeKey(query), payload, c.ttl).Err(); err != nil {
		return stderrors.NewCacheUnavailableError(err)
	}
	return nil
}

// Invalidate removes a single cached query.
func (c *RouteCache) Invalidate(ctx context.Context, query string) error {
	if err := c.client.Del(ctx, routeKey(query)).Err(); err != nil {
		return stderrors.NewCacheUnavailableError(err)
	}
	return nil
}

// routeKey normalizes query text the same way for reads and writes:
// lowercase with whitespace runs collapsed to single spaces.
func routeKey(query string) string {
	return routeKeyPrefix + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
