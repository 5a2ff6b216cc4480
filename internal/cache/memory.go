package cache

import (
	"context"
	"time"

	"noisewatch/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache keeps summaries in an expiring LRU local to the process
type MemoryCache struct {
	data *expirable.LRU[string, *models.AnalyticsSummary]
}

// NewMemoryCache creates an LRU holding up to capacity entries for ttl each
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		data: expirable.NewLRU[string, *models.AnalyticsSummary](capacity, nil, expiresIn(ttl)),
	}
}

func (c *MemoryCache) Get(_ context.Context) (*models.AnalyticsSummary, bool) {
	v, ok := c.data.Get(SummaryKey)
	record(ok)
	return v, ok
}

func (c *MemoryCache) Set(_ context.Context, summary *models.AnalyticsSummary) {
	c.data.Add(SummaryKey, summary)
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.data.Remove(SummaryKey)
}
