package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/store"
)

// NotificationServiceInterface builds the admin notification feed
type NotificationServiceInterface interface {
	Feed(ctx context.Context, seenAt *time.Time) (*models.NotificationFeed, error)
}

// NotificationService projects recent reports and registrations into a feed.
// Nothing is stored: read state is the caller's seenAt mark.
type NotificationService struct {
	reports    store.ReportRepository
	users      store.UserRepository
	windowDays int
	limit      int
	logger     *observability.Logger
	now        func() time.Time
}

var _ NotificationServiceInterface = (*NotificationService)(nil)

// NewNotificationService creates a NotificationService
func NewNotificationService(reports store.ReportRepository, users store.UserRepository, cfg config.NotificationsConfig, logger *observability.Logger) *NotificationService {
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = config.DefaultNotificationWindowDays
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = config.DefaultNotificationLimit
	}
	return &NotificationService{
		reports:    reports,
		users:      users,
		windowDays: windowDays,
		limit:      limit,
		logger:     logger,
		now:        time.Now,
	}
}

// Feed returns the newest reports and registrations of the window. Items newer than seenAt
// are unread; a nil seenAt marks everything unread.
func (s *NotificationService) Feed(ctx context.Context, seenAt *time.Time) (result *models.NotificationFeed, err error) {
	ctx, span := observability.TraceFunction(ctx, "notification", "feed")
	defer observability.FinishSpan(span, &err)

	since := s.now().UTC().AddDate(0, 0, -s.windowDays)

	reports, err := s.reports.List(ctx, models.ReportFilter{Since: &since, Limit: s.limit})
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, &since, s.limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.Notification, 0, len(reports)+len(users))
	for i := range reports {
		items = append(items, reportNotification(&reports[i]))
	}
	for i := range users {
		items = append(items, registrationNotification(&users[i]))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > s.limit {
		items = items[:s.limit]
	}

	feed := &models.NotificationFeed{Items: items, SeenAt: seenAt, Since: since}
	for i := range feed.Items {
		if seenAt == nil || feed.Items[i].CreatedAt.After(*seenAt) {
			feed.Items[i].Unread = true
			feed.UnreadCount++
		}
	}
	return feed, nil
}

func reportNotification(r *models.NoiseReport) models.Notification {
	level := r.NoiseLevel
	msg := r.Reason
	if r.Location != nil && r.Location.Address != "" {
		msg = fmt.Sprintf("%s at %s", r.Reason, r.Location.Address)
	}
	return models.Notification{
		ID:          "report:" + r.ID,
		Kind:        models.NotificationReport,
		Title:       fmt.Sprintf("New %s noise report", strings.ToUpper(string(r.NoiseLevel))),
		Message:     msg,
		ReferenceID: r.ID,
		NoiseLevel:  &level,
		CreatedAt:   r.CreatedAt,
	}
}

func registrationNotification(u *models.User) models.Notification {
	return models.Notification{
		ID:          "user:" + u.ID,
		Kind:        models.NotificationRegistration,
		Title:       "New user registered",
		Message:     fmt.Sprintf("%s (%s) created an account", u.Username, u.Email),
		ReferenceID: u.ID,
		CreatedAt:   u.CreatedAt,
	}
}
