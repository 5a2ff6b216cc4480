package services

import (
	"context"
	"io"
	"math"
	"strings"
	"time"

	"noisewatch/internal/cache"
	"noisewatch/internal/escalation"
	"noisewatch/internal/media"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Nearby search bounds
const (
	DefaultNearbyRadiusMeters = 500.0
	MaxNearbyRadiusMeters     = 50000.0
	DefaultNearbyLimit        = 50
)

// ReportServiceInterface defines the report lifecycle operations
type ReportServiceInterface interface {
	Submit(ctx context.Context, form SubmissionForm, upload io.Reader, userID *string) (*models.NoiseReport, error)
	Get(ctx context.Context, id string) (*models.NoiseReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error)
	ListUserReports(ctx context.Context, userID string) ([]models.NoiseReport, error)
	Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.NoiseReport, error)
	Options(ctx context.Context, id string) (*models.ReportOptions, error)
	UpdateStatus(ctx context.Context, req StatusUpdateRequest) (*models.NoiseReport, error)
	Delete(ctx context.Context, id string) error
}

// StatusUpdateRequest is an administrator's chosen response for a report.
// Version 0 skips the optimistic concurrency check.
type StatusUpdateRequest struct {
	ReportID string `json:"-"`
	Status   string `json:"status"`
	Note     string `json:"note,omitempty"`
	Version  int    `json:"version,omitempty"`
	AdminID  string `json:"-"`
}

// ReportService implements the report lifecycle on top of a ReportRepository
type ReportService struct {
	reports store.ReportRepository
	media   media.Store
	cache   cache.SummaryCache
	logger  *observability.Logger
	now     func() time.Time
}

var _ ReportServiceInterface = (*ReportService)(nil)

// NewReportService creates a ReportService. A nil cache disables invalidation.
func NewReportService(reports store.ReportRepository, mediaStore media.Store, summaryCache cache.SummaryCache, logger *observability.Logger) *ReportService {
	if summaryCache == nil {
		summaryCache = cache.Nop{}
	}
	return &ReportService{
		reports: reports,
		media:   mediaStore,
		cache:   summaryCache,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit validates a new report, stores its media and persists it as pending
func (s *ReportService) Submit(ctx context.Context, form SubmissionForm, upload io.Reader, userID *string) (result *models.NoiseReport, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "submit")
	defer observability.FinishSpan(span, &err)

	form.HasMedia = form.HasMedia && upload != nil
	report, err := ValidateSubmission(form)
	if err != nil {
		return nil, err
	}

	detected, body, err := media.Detect(upload)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("media.content_type", detected.ContentType))
	if detected.Kind == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "media must be an audio or video file (got %s)", detected.ContentType)
	}
	if report.MediaKind == "" {
		report.MediaKind = detected.Kind
	} else if !detected.Accepts(report.MediaKind) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "uploaded media is %s but mediaType is %s", detected.Kind, report.MediaKind)
	}

	report.ID = uuid.NewString()
	ref, err := s.media.Save(ctx, report.ID+detected.Extension, detected.ContentType, body)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	report.MediaReference = ref
	report.UserID = userID
	report.CreatedAt = now
	report.UpdatedAt = now

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	observability.ReportsSubmitted.WithLabelValues(string(report.NoiseLevel)).Inc()
	s.cache.Invalidate(ctx)
	span.SetAttributes(observability.AttributeReportID(report.ID), observability.AttributeNoiseLevel(string(report.NoiseLevel)))
	s.logger.Info(ctx, "Noise report submitted", map[string]interface{}{
		"report_id":   report.ID,
		"noise_level": report.NoiseLevel,
		"media_kind":  report.MediaKind,
	})
	return report, nil
}

// Get returns one report
func (s *ReportService) Get(ctx context.Context, id string) (result *models.NoiseReport, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "get", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	return s.reports.Get(ctx, id)
}

// List returns reports matching filter, newest first
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) (result []models.NoiseReport, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "list", observability.AttributeLimit(filter.Limit))
	defer observability.FinishSpan(span, &err)

	return s.reports.List(ctx, filter)
}

// ListUserReports returns the reports submitted by userID, newest first
func (s *ReportService) ListUserReports(ctx context.Context, userID string) ([]models.NoiseReport, error) {
	return s.List(ctx, models.ReportFilter{UserID: &userID})
}

// Nearby returns reports around a point, nearest first
func (s *ReportService) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) (result []models.NoiseReport, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "nearby",
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lng", lng),
		attribute.Float64("geo.radius_meters", radiusMeters),
	)
	defer observability.FinishSpan(span, &err)

	if math.IsNaN(lat) || lat < -90 || lat > 90 || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "lat must be within [-90, 90] and lng within [-180, 180]")
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultNearbyRadiusMeters
	}
	if radiusMeters > MaxNearbyRadiusMeters {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "radius must be at most %.0f meters", MaxNearbyRadiusMeters)
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	return s.reports.Nearby(ctx, lat, lng, radiusMeters, limit)
}

// Options returns the responses an administrator may currently send for a report
func (s *ReportService) Options(ctx context.Context, id string) (result *models.ReportOptions, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "options", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ReportOptions{
		ReportID:        report.ID,
		NoiseLevel:      report.NoiseLevel,
		ConsecutiveDays: report.ConsecutiveDays,
		Status:          report.Status,
		ResponseText:    report.ResponseText(),
		Threshold:       escalation.Threshold(report.NoiseLevel),
		Options:         report.Options(),
	}, nil
}

// UpdateStatus applies an administrator's status choice. The target must be offered by the
// escalation policy for the report as currently stored, or be pending. Every accepted call
// appends exactly one audit entry.
func (s *ReportService) UpdateStatus(ctx context.Context, req StatusUpdateRequest) (result *models.NoiseReport, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "update_status",
		observability.AttributeReportID(req.ReportID),
		observability.AttributeStatus(req.Status),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(req.Status) == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "status is required")
	}
	target, ok := escalation.ParseStatus(req.Status)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown status %q", req.Status)
	}
	if req.Version < 0 {
		return nil, contextutils.WrapError(contextutils.ErrValidationFailed, "version must be positive")
	}

	var adminID *string
	if req.AdminID != "" {
		id := req.AdminID
		adminID = &id
	}
	at := s.now().UTC()

	check := func(current *models.NoiseReport) (models.AdminAction, error) {
		if !escalation.Allows(current.NoiseLevel, current.ConsecutiveDays, target) {
			return models.AdminAction{}, contextutils.WrapErrorf(contextutils.ErrValidationFailed,
				"status %s is not available for a %s report on day %d", target, current.NoiseLevel, current.ConsecutiveDays)
		}
		note := strings.TrimSpace(req.Note)
		if note == "" {
			note = escalation.ResponseText(current.NoiseLevel, current.ConsecutiveDays, target)
		}
		return models.AdminAction{
			Action:    escalation.Label(target),
			Status:    target,
			Note:      note,
			AdminID:   adminID,
			Timestamp: at,
		}, nil
	}

	updated, err := s.reports.UpdateStatus(ctx, models.StatusChange{
		ReportID:        req.ReportID,
		ExpectedVersion: req.Version,
		Status:          target,
		At:              at,
	}, check)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrConflict) {
			observability.StatusConflicts.Inc()
		}
		return nil, err
	}

	observability.StatusTransitions.WithLabelValues(string(target)).Inc()
	s.cache.Invalidate(ctx)
	s.logger.Info(ctx, "Report status updated", map[string]interface{}{
		"report_id": updated.ID,
		"status":    updated.Status,
		"version":   updated.Version,
		"admin_id":  req.AdminID,
	})
	return updated, nil
}

// Delete removes a report
func (s *ReportService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceReportFunction(ctx, "delete", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	observability.ReportsDeleted.Inc()
	s.cache.Invalidate(ctx)
	s.logger.Info(ctx, "Report deleted", map[string]interface{}{"report_id": id})
	return nil
}
