package services

import (
	"context"
	"io"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"

	"github.com/stretchr/testify/mock"
)

func createTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

// MockReportRepository implements store.ReportRepository for testing
type MockReportRepository struct {
	mock.Mock
}

var _ store.ReportRepository = (*MockReportRepository)(nil)

func (m *MockReportRepository) Create(ctx context.Context, report *models.NoiseReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) Get(ctx context.Context, id string) (*models.NoiseReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NoiseReport), args.Error(1)
}

func (m *MockReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.NoiseReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NoiseReport), args.Error(1)
}

func (m *MockReportRepository) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.NoiseReport, error) {
	args := m.Called(ctx, lat, lng, radiusMeters, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NoiseReport), args.Error(1)
}

// UpdateStatus runs check against the report registered with SetCurrent, mimicking the store
func (m *MockReportRepository) UpdateStatus(ctx context.Context, change models.StatusChange, check store.StatusCheck) (*models.NoiseReport, error) {
	args := m.Called(ctx, change)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	current := args.Get(0).(*models.NoiseReport)
	if change.ExpectedVersion != 0 && change.ExpectedVersion != current.Version {
		return nil, contextutils.WrapError(contextutils.ErrConflict, "report version changed")
	}
	action, err := check(current)
	if err != nil {
		return nil, err
	}
	updated := *current
	updated.Status = change.Status
	updated.AdminActions = append(append([]models.AdminAction{}, current.AdminActions...), action)
	updated.Version++
	updated.UpdatedAt = change.At
	*current = updated
	return &updated, nil
}

func (m *MockReportRepository) RaiseConsecutiveDays(ctx context.Context, id string, days int, at time.Time) (bool, error) {
	args := m.Called(ctx, id, days, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReportRepository) Analytics(ctx context.Context, q store.AnalyticsQuery) (*models.AnalyticsSummary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsSummary), args.Error(1)
}

// MockUserRepository implements store.UserRepository for testing
type MockUserRepository struct {
	mock.Mock
}

var _ store.UserRepository = (*MockUserRepository)(nil)

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, since *time.Time, limit int) ([]models.User, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	args := m.Called(ctx, id, passwordHash, at)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateProfilePhoto(ctx context.Context, id, url string, at time.Time) error {
	args := m.Called(ctx, id, url, at)
	return args.Error(0)
}

func (m *MockUserRepository) SetUserType(ctx context.Context, id string, userType models.UserType, at time.Time) error {
	args := m.Called(ctx, id, userType, at)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) Counts(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

// MockMediaStore records saved uploads
type MockMediaStore struct {
	mock.Mock
	Saved map[string][]byte
}

func (m *MockMediaStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, name, contentType)
	if err := args.Error(1); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.Saved == nil {
		m.Saved = map[string][]byte{}
	}
	m.Saved[name] = data
	return args.String(0), nil
}

// MockMailer implements mailer.Mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, user *models.User, link string) error {
	args := m.Called(ctx, user, link)
	return args.Error(0)
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	args := m.Called(ctx, to, subject, templateName, data)
	return args.Error(0)
}

func (m *MockMailer) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}
