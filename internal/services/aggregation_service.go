package services

import (
	"context"
	"time"

	"noisewatch/internal/aggregation"
	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// AggregationResult summarizes one consecutive-day pass
type AggregationResult struct {
	Scanned    int       `json:"scanned"`
	Planned    int       `json:"planned"`
	Raised     int       `json:"raised"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// AggregationServiceInterface runs the consecutive-day aggregator
type AggregationServiceInterface interface {
	Run(ctx context.Context) (*AggregationResult, error)
}

// AggregationService loads recent reports, plans counter raises and persists them
type AggregationService struct {
	reports store.ReportRepository
	matcher aggregation.Config
	logger  *observability.Logger
	now     func() time.Time
}

var _ AggregationServiceInterface = (*AggregationService)(nil)

// NewAggregationService creates an AggregationService from the aggregation settings
func NewAggregationService(reports store.ReportRepository, cfg config.AggregationConfig, logger *observability.Logger) *AggregationService {
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = config.DefaultMatchRadiusMeters
	}
	return &AggregationService{
		reports: reports,
		matcher: aggregation.Config{
			RadiusMeters:  radius,
			Location:      cfg.Location(),
			MatchSameUser: cfg.MatchSameUser,
			LookbackDays:  cfg.LookbackDays,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run performs one pass. Chains may reach back before the lookback window, so reports from
// twice the window are loaded as match candidates. A failed raise is logged and counted;
// the pass carries on with the remaining reports and returns its partial result together
// with an error.
func (s *AggregationService) Run(ctx context.Context) (result *AggregationResult, err error) {
	ctx, span := observability.TraceAggregationFunction(ctx, "run")
	defer observability.FinishSpan(span, &err)

	now := s.now()
	res := &AggregationResult{StartedAt: now.UTC()}

	filter := models.ReportFilter{}
	if s.matcher.LookbackDays > 0 {
		since := contextutils.StartOfDay(now, s.matcher.Location).AddDate(0, 0, -2*s.matcher.LookbackDays)
		filter.Since = &since
	}
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		observability.AggregationRuns.WithLabelValues("error").Inc()
		return nil, contextutils.WrapError(err, "failed to load reports for aggregation")
	}

	pool := make([]aggregation.Sample, 0, len(reports))
	for i := range reports {
		pool = append(pool, aggregation.SampleFromReport(&reports[i]))
	}
	res.Scanned = len(pool)

	updates := s.matcher.Plan(pool, now)
	res.Planned = len(updates)

	for _, u := range updates {
		changed, err := s.reports.RaiseConsecutiveDays(ctx, u.ReportID, u.To, now.UTC())
		if err != nil {
			res.Failed++
			s.logger.Error(ctx, "Failed to raise consecutive days", err, map[string]interface{}{
				"report_id": u.ReportID,
				"from":      u.From,
				"to":        u.To,
			})
			continue
		}
		if changed {
			res.Raised++
			s.logger.Debug(ctx, "Consecutive days raised", map[string]interface{}{
				"report_id": u.ReportID,
				"from":      u.From,
				"to":        u.To,
			})
		}
	}
	res.FinishedAt = s.now().UTC()

	outcome := "success"
	if res.Failed > 0 {
		outcome = "partial"
	}
	observability.AggregationRuns.WithLabelValues(outcome).Inc()
	observability.AggregationUpdates.Add(float64(res.Raised))
	span.SetAttributes(
		attribute.Int("aggregation.scanned", res.Scanned),
		attribute.Int("aggregation.planned", res.Planned),
		attribute.Int("aggregation.raised", res.Raised),
	)
	s.logger.Info(ctx, "Aggregation pass finished", map[string]interface{}{
		"scanned": res.Scanned,
		"planned": res.Planned,
		"raised":  res.Raised,
		"failed":  res.Failed,
	})
	if res.Failed > 0 {
		return res, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "%d of %d counter raises failed", res.Failed, res.Planned)
	}
	return res, nil
}
