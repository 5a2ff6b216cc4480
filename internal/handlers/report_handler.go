package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"noisewatch/internal/config"
	"noisewatch/internal/escalation"
	"noisewatch/internal/middleware"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// MaxReportListLimit caps the limit query parameter of report listings
const MaxReportListLimit = 1000

// ReportHandler exposes the report lifecycle over HTTP
type ReportHandler struct {
	reportService services.ReportServiceInterface
	cfg           *config.Config
	logger        *observability.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService services.ReportServiceInterface, cfg *config.Config, logger *observability.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		cfg:           cfg,
		logger:        logger,
	}
}

// ListReportsParams are the query parameters of GET /reports/get-report
type ListReportsParams struct {
	Status     *string `form:"status"`
	NoiseLevel *string `form:"noiseLevel"`
	Limit      *int    `form:"limit"`
}

// NearbyParams are the query parameters of GET /reports/nearby
type NearbyParams struct {
	Lat    float64  `form:"lat"`
	Lng    float64  `form:"lng"`
	Radius *float64 `form:"radius"`
	Limit  *int     `form:"limit"`
}

// SubmitReport accepts a multipart noise report
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_report")
	defer observability.FinishSpan(span, nil)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes())

	file, _, err := c.Request.FormFile("media")
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
	case errors.Is(err, http.ErrMissingFile):
	default:
		HandleAppError(c, bodyError(err))
		return
	}

	form := services.SubmissionForm{
		HasMedia:   file != nil,
		Reason:     c.PostForm("reason"),
		Comment:    c.PostForm("comment"),
		Location:   c.PostForm("location"),
		MediaType:  c.PostForm("mediaType"),
		NoiseLevel: c.PostForm("noiseLevel"),
	}

	var upload io.Reader
	if file != nil {
		upload = file
	}

	var userID *string
	if id, ok := middleware.CurrentUserID(c); ok {
		userID = &id
	}

	report, err := h.reportService.Submit(ctx, form, upload, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// ListReports returns reports newest first, optionally filtered by status and noise level
func (h *ReportHandler) ListReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_reports")
	defer observability.FinishSpan(span, nil)

	var params ListReportsParams
	query := c.Request.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "status", query, &params.Status); err != nil {
		HandleValidationError(c, "status", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "noiseLevel", query, &params.NoiseLevel); err != nil {
		HandleValidationError(c, "noiseLevel", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		HandleValidationError(c, "limit", err.Error())
		return
	}

	filter, err := params.filter()
	if err != nil {
		HandleAppError(c, err)
		return
	}

	reports, err := h.reportService.List(ctx, filter)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

func (p ListReportsParams) filter() (models.ReportFilter, error) {
	var filter models.ReportFilter
	if p.Status != nil && strings.TrimSpace(*p.Status) != "" {
		status, ok := escalation.ParseStatus(*p.Status)
		if !ok {
			return filter, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown status %q", *p.Status)
		}
		filter.Status = &status
	}
	if p.NoiseLevel != nil && strings.TrimSpace(*p.NoiseLevel) != "" {
		level, ok := escalation.ParseNoiseLevel(*p.NoiseLevel)
		if !ok {
			return filter, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown noiseLevel %q", *p.NoiseLevel)
		}
		filter.NoiseLevel = &level
	}
	if p.Limit != nil {
		if *p.Limit < 0 {
			return filter, contextutils.WrapError(contextutils.ErrValidationFailed, "limit must not be negative")
		}
		filter.Limit = min(*p.Limit, MaxReportListLimit)
	}
	return filter, nil
}

// GetReport returns one report
func (h *ReportHandler) GetReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_report")
	defer observability.FinishSpan(span, nil)

	report, err := h.reportService.Get(ctx, c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetReportOptions returns the responses an administrator may send for a report
func (h *ReportHandler) GetReportOptions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_report_options")
	defer observability.FinishSpan(span, nil)

	opts, err := h.reportService.Options(ctx, c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

// MyReports returns the caller's own reports
func (h *ReportHandler) MyReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "my_reports")
	defer observability.FinishSpan(span, nil)

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrUnauthorized, "Authentication required"))
		return
	}

	reports, err := h.reportService.ListUserReports(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

// Nearby returns reports around a point, nearest first
func (h *ReportHandler) Nearby(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "nearby_reports")
	defer observability.FinishSpan(span, nil)

	var params NearbyParams
	query := c.Request.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "lat", query, &params.Lat); err != nil {
		HandleValidationError(c, "lat", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "lng", query, &params.Lng); err != nil {
		HandleValidationError(c, "lng", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "radius", query, &params.Radius); err != nil {
		HandleValidationError(c, "radius", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		HandleValidationError(c, "limit", err.Error())
		return
	}

	var radius float64
	if params.Radius != nil {
		radius = *params.Radius
	}
	var limit int
	if params.Limit != nil {
		limit = *params.Limit
	}

	reports, err := h.reportService.Nearby(ctx, params.Lat, params.Lng, radius, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

// UpdateStatus applies an administrator's status choice
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_report_status")
	defer observability.FinishSpan(span, nil)

	var req services.StatusUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ReportID = c.Param("id")
	req.AdminID, _ = middleware.CurrentUserID(c)

	report, err := h.reportService.UpdateStatus(ctx, req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport removes a report
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_report")
	defer observability.FinishSpan(span, nil)

	if err := h.reportService.Delete(ctx, c.Param("id")); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}

// nonNilReports makes empty results encode as [] rather than null
func nonNilReports(reports []models.NoiseReport) []models.NoiseReport {
	if reports == nil {
		return []models.NoiseReport{}
	}
	return reports
}
