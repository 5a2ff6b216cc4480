package handlers

import (
	"context"
	"io"
	"time"

	"noisewatch/internal/media"
	"noisewatch/internal/models"
	"noisewatch/internal/services"

	"github.com/stretchr/testify/mock"
)

// MockUserService implements services.UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

var _ services.UserServiceInterface = (*MockUserService)(nil)

func (m *MockUserService) Register(ctx context.Context, req services.RegisterRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, since *time.Time, limit int) ([]models.User, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, id, newPassword string) error {
	return m.Called(ctx, id, newPassword).Error(0)
}

func (m *MockUserService) MarkVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserService) UpdateProfilePhoto(ctx context.Context, id, photoURL string) (*models.User, error) {
	args := m.Called(ctx, id, photoURL)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) IsAdmin(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserService) EnsureAdminUserExists(ctx context.Context, username, email, password string) error {
	return m.Called(ctx, username, email, password).Error(0)
}

func (m *MockUserService) IssueAccessToken(ctx context.Context, user *models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) UserIDFromAccessToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func userOrNil(v interface{}) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

// MockReportService implements services.ReportServiceInterface for testing
type MockReportService struct {
	mock.Mock
}

var _ services.ReportServiceInterface = (*MockReportService)(nil)

func (m *MockReportService) Submit(ctx context.Context, form services.SubmissionForm, upload io.Reader, userID *string) (*models.NoiseReport, error) {
	var body []byte
	if upload != nil {
		body, _ = io.ReadAll(upload)
	}
	args := m.Called(ctx, form, string(body), userID)
	return reportOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) Get(ctx context.Context, id string) (*models.NoiseReport, error) {
	args := m.Called(ctx, id)
	return reportOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error) {
	args := m.Called(ctx, filter)
	return reportsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) ListUserReports(ctx context.Context, userID string) ([]models.NoiseReport, error) {
	args := m.Called(ctx, userID)
	return reportsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.NoiseReport, error) {
	args := m.Called(ctx, lat, lng, radiusMeters, limit)
	return reportsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) Options(ctx context.Context, id string) (*models.ReportOptions, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReportOptions), args.Error(1)
}

func (m *MockReportService) UpdateStatus(ctx context.Context, req services.StatusUpdateRequest) (*models.NoiseReport, error) {
	args := m.Called(ctx, req)
	return reportOrNil(args.Get(0)), args.Error(1)
}

func (m *MockReportService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func reportOrNil(v interface{}) *models.NoiseReport {
	if v == nil {
		return nil
	}
	return v.(*models.NoiseReport)
}

func reportsOrNil(v interface{}) []models.NoiseReport {
	if v == nil {
		return nil
	}
	return v.([]models.NoiseReport)
}

// MockNotificationService implements services.NotificationServiceInterface for testing
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Feed(ctx context.Context, seenAt *time.Time) (*models.NotificationFeed, error) {
	args := m.Called(ctx, seenAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationFeed), args.Error(1)
}

// MockAnalyticsService implements services.AnalyticsServiceInterface for testing
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsSummary), args.Error(1)
}

// MockAggregationService implements services.AggregationServiceInterface for testing
type MockAggregationService struct {
	mock.Mock
}

func (m *MockAggregationService) Run(ctx context.Context) (*services.AggregationResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AggregationResult), args.Error(1)
}

// MockMediaStore implements media.Store for testing
type MockMediaStore struct {
	mock.Mock
}

var _ media.Store = (*MockMediaStore)(nil)

func (m *MockMediaStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	args := m.Called(ctx, name, contentType)
	return args.String(0), args.Error(1)
}
