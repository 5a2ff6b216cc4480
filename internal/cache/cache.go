// Package cache holds the analytics summary between dashboard refreshes. The summary is small
// and recomputed on a miss, so every backend failure degrades to a miss.
package cache

import (
	"context"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
)

// SummaryKey is the single key the analytics summary is stored under
const SummaryKey = "analytics/summary"

// SummaryCache stores the latest analytics summary
type SummaryCache interface {
	Get(ctx context.Context) (*models.AnalyticsSummary, bool)
	Set(ctx context.Context, summary *models.AnalyticsSummary)
	Invalidate(ctx context.Context)
}

// New returns a Redis cache when cfg.RedisURL is set, otherwise an in-process LRU
func New(cfg config.CacheConfig, logger *observability.Logger) (SummaryCache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	if cfg.RedisURL == "" {
		size := cfg.LRUSize
		if size <= 0 {
			size = config.DefaultLRUSize
		}
		return NewMemoryCache(size, ttl), nil
	}
	return NewRedisCache(cfg.RedisURL, ttl, logger)
}

func record(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	observability.CacheLookups.WithLabelValues(outcome).Inc()
}

// Nop never holds anything. It is used when caching is switched off.
type Nop struct{}

func (Nop) Get(context.Context) (*models.AnalyticsSummary, bool) { return nil, false }
func (Nop) Set(context.Context, *models.AnalyticsSummary)        {}
func (Nop) Invalidate(context.Context)                           {}

var _ SummaryCache = Nop{}

// expiresIn is how long a value set now should live
func expiresIn(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return config.DefaultCacheTTL
	}
	return ttl
}
