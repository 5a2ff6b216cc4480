package cache

import (
	"context"
	"errors"
	"time"

	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "noisewatch/"

// RedisCache shares the summary between API replicas. It has no local tier so that
// an invalidation from one replica is seen by all of them.
type RedisCache struct {
	client *redis.Client
	data   *cache.Cache
	ttl    time.Duration
	logger *observability.Logger
}

// NewRedisCache connects to redisURL
func NewRedisCache(redisURL string, ttl time.Duration, logger *observability.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid cache.redis_url: %v", err)
	}
	rdb := redis.NewClient(opt)
	return &RedisCache{
		client: rdb,
		data:   cache.New(&cache.Options{Redis: rdb}),
		ttl:    expiresIn(ttl),
		logger: logger,
	}, nil
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context) (*models.AnalyticsSummary, bool) {
	ctx, span := observability.TraceCacheFunction(ctx, "get")
	defer span.End()

	var summary models.AnalyticsSummary
	err := c.data.Get(ctx, redisKeyPrefix+SummaryKey, &summary)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn(ctx, "Analytics cache read failed", map[string]interface{}{"error": err.Error()})
		}
		record(false)
		return nil, false
	}
	record(true)
	return &summary, true
}

func (c *RedisCache) Set(ctx context.Context, summary *models.AnalyticsSummary) {
	ctx, span := observability.TraceCacheFunction(ctx, "set")
	defer span.End()

	err := c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKeyPrefix + SummaryKey,
		Value: summary,
		TTL:   c.ttl,
	})
	if err != nil {
		c.logger.Warn(ctx, "Analytics cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	ctx, span := observability.TraceCacheFunction(ctx, "invalidate")
	defer span.End()

	err := c.data.Delete(ctx, redisKeyPrefix+SummaryKey)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn(ctx, "Analytics cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}
