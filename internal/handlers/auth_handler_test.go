package handlers

import (
	"net/http"
	"testing"

	"noisewatch/internal/models"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)
	created := &models.User{ID: "user-9", Username: "maria", Email: "maria@example.com", UserType: models.UserTypeUser}
	env.users.On("Register", mock.Anything, services.RegisterRequest{
		Username: "maria",
		Email:    "maria@example.com",
		Password: "s3cret-pass",
	}).Return(created, nil).Once()

	w := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        jsonBody(`{"username":"maria","email":"maria@example.com","password":"s3cret-pass"}`),
		contentType: "application/json",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	decodeJSON(t, w, &body)
	assert.Equal(t, "user-9", body.User.ID)
	assert.Contains(t, body.Message, "verify")
	assert.NotContains(t, w.Body.String(), "password")
	env.users.AssertExpectations(t)
}

func TestAuthHandler_Register_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("Register", mock.Anything, mock.MatchedBy(func(r services.RegisterRequest) bool { return r.Username == "taken" })).
		Return(nil, contextutils.WrapError(contextutils.ErrRecordExists, "email is already registered")).Once()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest},
		{"invalid email", `{"username":"maria","email":"not-an-email","password":"s3cret-pass"}`, http.StatusBadRequest},
		{"duplicate", `{"username":"taken","email":"maria@example.com","password":"s3cret-pass"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(request{method: http.MethodPost, path: "/auth/register", body: jsonBody(tt.body), contentType: "application/json"})
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("Authenticate", mock.Anything, "juan@example.com", "s3cret-pass").Return(testCitizen, nil).Once()
	env.users.On("IssueAccessToken", mock.Anything, testCitizen).Return("signed.jwt.token", nil).Once()

	w := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        jsonBody(`{"email":"juan@example.com","password":"s3cret-pass"}`),
		contentType: "application/json",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body LoginResponse
	decodeJSON(t, w, &body)
	assert.Equal(t, "signed.jwt.token", body.Token)
	assert.Equal(t, testCitizen.ID, body.User.ID)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// The session cookie alone authenticates follow-up requests
	status := env.do(request{method: http.MethodGet, path: "/auth/status", cookies: cookies})
	require.Equal(t, http.StatusOK, status.Code)
	var st struct {
		Authenticated bool        `json:"authenticated"`
		User          models.User `json:"user"`
	}
	decodeJSON(t, status, &st)
	assert.True(t, st.Authenticated)
	assert.Equal(t, testCitizen.ID, st.User.ID)
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("Authenticate", mock.Anything, "juan@example.com", "wrong-pass").
		Return(nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, services.InvalidCredentialsMessage)).Once()
	env.users.On("Authenticate", mock.Anything, "pedro@example.com", "s3cret-pass").
		Return(nil, contextutils.WrapError(contextutils.ErrEmailNotVerified, services.EmailNotVerifiedMessage)).Once()

	wrong := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        jsonBody(`{"email":"juan@example.com","password":"wrong-pass"}`),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, "Invalid email or password", errorBody(t, wrong)["error"])
	assert.Empty(t, wrong.Result().Cookies())

	unverified := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        jsonBody(`{"email":"pedro@example.com","password":"s3cret-pass"}`),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusForbidden, unverified.Code)
	assert.Equal(t, "Please verify your email before logging in", errorBody(t, unverified)["error"])

	env.users.AssertNotCalled(t, "IssueAccessToken", mock.Anything, mock.Anything)
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	verified := &models.User{ID: "user-9", IsVerified: true}
	env.users.On("VerifyEmail", mock.Anything, "good-token").Return(verified, nil).Once()
	env.users.On("VerifyEmail", mock.Anything, "used-token").
		Return(nil, contextutils.WrapError(contextutils.ErrInvalidToken, "verification link has already been used")).Once()

	ok := env.do(request{method: http.MethodGet, path: "/auth/verify?token=good-token"})
	assert.Equal(t, http.StatusOK, ok.Code)

	used := env.do(request{method: http.MethodGet, path: "/auth/verify?token=used-token"})
	assert.Equal(t, http.StatusBadRequest, used.Code)
	assert.Equal(t, "verification link has already been used", errorBody(t, used)["error"])

	missing := env.do(request{method: http.MethodGet, path: "/auth/verify"})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestAuthHandler_ResendVerification(t *testing.T) {
	env := newTestEnv(t)
	env.users.On("ResendVerification", mock.Anything, "pedro@example.com").Return(nil).Once()

	w := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/resend-verification",
		body:        jsonBody(`{"email":"pedro@example.com"}`),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	empty := env.do(request{
		method:      http.MethodPost,
		path:        "/auth/resend-verification",
		body:        jsonBody(`{}`),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	env.users.AssertExpectations(t)
}

func TestAuthHandler_StatusAndLogout(t *testing.T) {
	env := newTestEnv(t)

	anon := env.do(request{method: http.MethodGet, path: "/auth/status"})
	require.Equal(t, http.StatusOK, anon.Code)
	assert.JSONEq(t, `{"authenticated":false}`, anon.Body.String())

	bearer := env.do(request{method: http.MethodGet, path: "/auth/status", token: citizenToken})
	require.Equal(t, http.StatusOK, bearer.Code)
	assert.Equal(t, true, errorBody(t, bearer)["authenticated"])

	out := env.do(request{method: http.MethodPost, path: "/auth/logout"})
	assert.Equal(t, http.StatusOK, out.Code)
}
