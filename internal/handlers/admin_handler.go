package handlers

import (
	"net/http"
	"time"

	"noisewatch/internal/middleware"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
)

// Admin user listing bounds
const (
	DefaultUserListLimit = 100
	MaxUserListLimit     = 1000
)

// AdminHandler serves the administrator dashboard
type AdminHandler struct {
	userService         services.UserServiceInterface
	notificationService services.NotificationServiceInterface
	analyticsService    services.AnalyticsServiceInterface
	aggregationService  services.AggregationServiceInterface
	logger              *observability.Logger
	now                 func() time.Time
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	userService services.UserServiceInterface,
	notificationService services.NotificationServiceInterface,
	analyticsService services.AnalyticsServiceInterface,
	aggregationService services.AggregationServiceInterface,
	logger *observability.Logger,
) *AdminHandler {
	return &AdminHandler{
		userService:         userService,
		notificationService: notificationService,
		analyticsService:    analyticsService,
		aggregationService:  aggregationService,
		logger:              logger,
		now:                 time.Now,
	}
}

// GetNotifications returns the notification feed. Unread state is relative to this session's read mark.
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_notifications")
	defer observability.FinishSpan(span, nil)

	feed, err := h.notificationService.Feed(ctx, notificationsSeenAt(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// MarkNotificationsRead moves this session's read mark to now
func (h *AdminHandler) MarkNotificationsRead(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_notifications_read")
	defer observability.FinishSpan(span, nil)

	seenAt := h.now().UTC()
	if err := markNotificationsSeen(c, seenAt); err != nil {
		h.logger.Error(ctx, "Failed to save notification read mark", err, nil)
		HandleAppError(c, contextutils.WrapError(err, "failed to save session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"seenAt": seenAt, "unreadCount": 0})
}

// GetAnalytics returns the dashboard summary
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_analytics")
	defer observability.FinishSpan(span, nil)

	summary, err := h.analyticsService.Summary(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListUsers returns registered users, newest first
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_users")
	defer observability.FinishSpan(span, nil)

	users, err := h.userService.ListUsers(ctx, nil, ParseLimit(c, DefaultUserListLimit, MaxUserListLimit))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// DeleteUser removes an account. The user's reports are kept without an owner.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_user")
	defer observability.FinishSpan(span, nil)

	id := c.Param("id")
	if current, ok := middleware.CurrentUserID(c); ok && current == id {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrValidationFailed, "administrators cannot delete their own account"))
		return
	}

	if err := h.userService.DeleteUser(ctx, id); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// RunAggregation recomputes consecutive-day counters immediately
func (h *AdminHandler) RunAggregation(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "run_aggregation")
	defer observability.FinishSpan(span, nil)

	result, err := h.aggregationService.Run(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
