package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminToken   = "admin-token"
	citizenToken = "citizen-token"
)

var (
	testAdmin   = &models.User{ID: "admin-1", Username: "kapitan", Email: "admin@noisewatch.local", UserType: models.UserTypeAdmin, IsVerified: true}
	testCitizen = &models.User{ID: "user-1", Username: "juan", Email: "juan@example.com", UserType: models.UserTypeUser, IsVerified: true}
)

type testEnv struct {
	cfg           *config.Config
	users         *MockUserService
	reports       *MockReportService
	notifications *MockNotificationService
	analytics     *MockAnalyticsService
	aggregation   *MockAggregationService
	media         *MockMediaStore
	router        *gin.Engine
}

func newTestConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.Server.SessionSecret = "test-session-secret"
	cfg.Server.MaxUploadMB = 5
	cfg.Media.Backend = config.MediaBackendLocal
	cfg.Media.LocalDir = t.TempDir()
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		cfg:           newTestConfig(t),
		users:         &MockUserService{},
		reports:       &MockReportService{},
		notifications: &MockNotificationService{},
		analytics:     &MockAnalyticsService{},
		aggregation:   &MockAggregationService{},
		media:         &MockMediaStore{},
	}

	env.users.On("UserIDFromAccessToken", mock.Anything, adminToken).Return(testAdmin.ID, nil).Maybe()
	env.users.On("UserIDFromAccessToken", mock.Anything, citizenToken).Return(testCitizen.ID, nil).Maybe()
	env.users.On("GetUserByID", mock.Anything, testAdmin.ID).Return(testAdmin, nil).Maybe()
	env.users.On("GetUserByID", mock.Anything, testCitizen.ID).Return(testCitizen, nil).Maybe()

	env.router = NewRouter(env.cfg, env.users, env.reports, env.notifications, env.analytics, env.aggregation, env.media, observability.NewNopLogger())
	return env
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	token       string
	cookies     []*http.Cookie
}

func (e *testEnv) do(r request) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decodeJSON(t, w, &body)
	return body
}

func notFound(msg string) error {
	return contextutils.WrapError(contextutils.ErrRecordNotFound, msg)
}
