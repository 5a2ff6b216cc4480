package cache

import (
	"context"
	"testing"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4, time.Minute)

	_, ok := c.Get(ctx)
	assert.False(t, ok)

	c.Set(ctx, &models.AnalyticsSummary{TotalReports: 7})
	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, 7, got.TotalReports)

	c.Invalidate(ctx)
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4, 20*time.Millisecond)
	c.Set(ctx, &models.AnalyticsSummary{TotalReports: 1})

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNew_SelectsBackend(t *testing.T) {
	logger := observability.NewNopLogger()

	c, err := New(config.CacheConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(config.CacheConfig{RedisURL: "redis://localhost:6379/0", TTL: time.Second}, logger)
	require.NoError(t, err)
	rc, ok := c.(*RedisCache)
	require.True(t, ok)
	assert.Equal(t, time.Second, rc.ttl)
	assert.NoError(t, rc.Close())

	_, err = New(config.CacheConfig{RedisURL: "not a url"}, logger)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c SummaryCache = Nop{}
	c.Set(ctx, &models.AnalyticsSummary{})
	_, ok := c.Get(ctx)
	assert.False(t, ok)
	c.Invalidate(ctx)
}
