package services

import (
	"context"
	"time"

	"noisewatch/internal/cache"
	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"
)

// Dashboard chart parameters
const (
	AnalyticsDays       = 30
	AnalyticsTopReasons = 5
)

// AnalyticsServiceInterface serves the dashboard summary
type AnalyticsServiceInterface interface {
	Summary(ctx context.Context) (*models.AnalyticsSummary, error)
}

// AnalyticsService computes the dashboard summary and keeps it in a SummaryCache
type AnalyticsService struct {
	reports  store.ReportRepository
	users    store.UserRepository
	cache    cache.SummaryCache
	location *time.Location
	logger   *observability.Logger
	now      func() time.Time
}

var _ AnalyticsServiceInterface = (*AnalyticsService)(nil)

// NewAnalyticsService creates an AnalyticsService. Daily buckets use the aggregation timezone.
func NewAnalyticsService(reports store.ReportRepository, users store.UserRepository, summaryCache cache.SummaryCache, cfg *config.Config, logger *observability.Logger) *AnalyticsService {
	if summaryCache == nil {
		summaryCache = cache.Nop{}
	}
	return &AnalyticsService{
		reports:  reports,
		users:    users,
		cache:    summaryCache,
		location: cfg.Aggregation.Location(),
		logger:   logger,
		now:      time.Now,
	}
}

// Summary returns the cached summary or computes a fresh one
func (s *AnalyticsService) Summary(ctx context.Context) (result *models.AnalyticsSummary, err error) {
	ctx, span := observability.TraceFunction(ctx, "analytics", "summary")
	defer observability.FinishSpan(span, &err)

	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}

	now := s.now()
	since := contextutils.StartOfDay(now, s.location).AddDate(0, 0, -(AnalyticsDays - 1))
	summary, err := s.reports.Analytics(ctx, store.AnalyticsQuery{
		Since:    since,
		Location: s.location,
		TopN:     AnalyticsTopReasons,
	})
	if err != nil {
		return nil, err
	}

	total, verified, err := s.users.Counts(ctx)
	if err != nil {
		return nil, err
	}
	summary.TotalUsers = total
	summary.VerifiedUsers = verified
	summary.GeneratedAt = now.UTC()

	s.cache.Set(ctx, summary)
	return summary, nil
}
