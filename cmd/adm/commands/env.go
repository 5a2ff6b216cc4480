// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"io"
	"time"

	"noisewatch/internal/models"
	"noisewatch/internal/services"
)

// UserAdmin is the part of the user service the admin tool drives
type UserAdmin interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, since *time.Time, limit int) ([]models.User, error)
	MarkVerified(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, newPassword string) error
	DeleteUser(ctx context.Context, id string) error
}

// ReportAdmin is the part of the report service the admin tool drives
type ReportAdmin interface {
	Submit(ctx context.Context, form services.SubmissionForm, upload io.Reader, userID *string) (*models.NoiseReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error)
	Options(ctx context.Context, id string) (*models.ReportOptions, error)
	UpdateStatus(ctx context.Context, req services.StatusUpdateRequest) (*models.NoiseReport, error)
}

// Env carries the services commands run against
type Env struct {
	Users       UserAdmin
	Reports     ReportAdmin
	Aggregation services.AggregationServiceInterface
}

// Provider builds the command environment on first use, so commands that only need a
// database connection never wire the full service stack.
type Provider func(ctx context.Context) (*Env, error)
