package commands

import (
	"context"
	"io"
	"time"

	"noisewatch/internal/models"
	"noisewatch/internal/services"

	"github.com/stretchr/testify/mock"
)

type mockUsers struct {
	mock.Mock
}

var _ UserAdmin = (*mockUsers)(nil)

func (m *mockUsers) Register(ctx context.Context, req services.RegisterRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) ListUsers(ctx context.Context, since *time.Time, limit int) ([]models.User, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockUsers) MarkVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUsers) ResetPassword(ctx context.Context, id, newPassword string) error {
	return m.Called(ctx, id, newPassword).Error(0)
}

func (m *mockUsers) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockReports struct {
	mock.Mock
}

var _ ReportAdmin = (*mockReports)(nil)

func (m *mockReports) Submit(ctx context.Context, form services.SubmissionForm, upload io.Reader, userID *string) (*models.NoiseReport, error) {
	args := m.Called(ctx, form, upload, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NoiseReport), args.Error(1)
}

func (m *mockReports) List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NoiseReport), args.Error(1)
}

func (m *mockReports) Options(ctx context.Context, id string) (*models.ReportOptions, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportOptions), args.Error(1)
}

func (m *mockReports) UpdateStatus(ctx context.Context, req services.StatusUpdateRequest) (*models.NoiseReport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NoiseReport), args.Error(1)
}

type mockAggregation struct {
	mock.Mock
}

var _ services.AggregationServiceInterface = (*mockAggregation)(nil)

func (m *mockAggregation) Run(ctx context.Context) (*services.AggregationResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AggregationResult), args.Error(1)
}
