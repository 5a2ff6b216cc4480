// Package store persists noise reports and users. Every repository has a PostgreSQL and a
// MongoDB implementation with identical semantics; the storage.driver setting picks one.
package store

import (
	"context"
	"time"

	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	contextutils "noisewatch/internal/utils"
)

// StatusCheck inspects the locked, current report and returns the audit entry to append,
// or an error to abort the transition without writing anything.
type StatusCheck func(current *models.NoiseReport) (models.AdminAction, error)

// AnalyticsQuery parameterizes ReportRepository.Analytics
type AnalyticsQuery struct {
	Since    time.Time
	Location *time.Location
	TopN     int
}

// ReportRepository defines persistence operations for noise reports
type ReportRepository interface {
	// Create inserts a new report
	Create(ctx context.Context, report *models.NoiseReport) error

	// Get returns a report by id or ErrRecordNotFound
	Get(ctx context.Context, id string) (*models.NoiseReport, error)

	// List returns reports matching filter, newest first
	List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error)

	// Nearby returns reports within radiusMeters of the point, nearest first
	Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.NoiseReport, error)

	// UpdateStatus atomically re-reads the report, runs check, then writes the new status,
	// appends the audit entry, bumps version and refreshes updatedAt.
	// A version mismatch yields ErrConflict.
	UpdateStatus(ctx context.Context, change models.StatusChange, check StatusCheck) (*models.NoiseReport, error)

	// RaiseConsecutiveDays sets the counter to days when it is currently lower and the report
	// is not resolved. It reports whether a row changed.
	RaiseConsecutiveDays(ctx context.Context, id string, days int, at time.Time) (bool, error)

	// Delete removes a report or returns ErrRecordNotFound
	Delete(ctx context.Context, id string) error

	// Analytics fills the report part of the dashboard summary
	Analytics(ctx context.Context, q AnalyticsQuery) (*models.AnalyticsSummary, error)
}

// UserRepository defines persistence operations for accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List returns users newest first. A nil since and a zero limit do not filter.
	List(ctx context.Context, since *time.Time, limit int) ([]models.User, error)

	// MarkVerified flips isVerified once. It reports false when the user was already verified.
	MarkVerified(ctx context.Context, id string, at time.Time) (bool, error)

	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateProfilePhoto(ctx context.Context, id, url string, at time.Time) error
	SetUserType(ctx context.Context, id string, userType models.UserType, at time.Time) error

	// Delete removes the user. Their reports are kept with userId cleared.
	Delete(ctx context.Context, id string) error

	// Counts returns the total and verified user counts
	Counts(ctx context.Context) (total, verified int, err error)
}

func newSummary() *models.AnalyticsSummary {
	summary := &models.AnalyticsSummary{
		ByStatus:     map[string]int{},
		ByNoiseLevel: map[string]int{},
		TopReasons:   []models.ReasonCount{},
		Daily:        []models.DailyCount{},
	}
	for _, s := range escalation.AllStatuses {
		summary.ByStatus[string(s)] = 0
	}
	for _, l := range escalation.AllLevels {
		summary.ByNoiseLevel[string(l)] = 0
	}
	return summary
}

// fillDailyGaps returns one entry per calendar day from since through until, zero-filled
func fillDailyGaps(counts map[string]int, since, until time.Time, loc *time.Location) []models.DailyCount {
	var out []models.DailyCount
	end := contextutils.StartOfDay(until, loc)
	for d := contextutils.StartOfDay(since, loc); !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(contextutils.DayKeyLayout)
		out = append(out, models.DailyCount{Day: key, Count: counts[key]})
	}
	return out
}

func locationName(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	return loc.String()
}
