package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"noisewatch/internal/models"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserResolver struct {
	users     map[string]*models.User
	tokens    map[string]string
	lookupErr error
	lookups   int
}

func (m *mockUserResolver) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, contextutils.ErrRecordNotFound
}

func (m *mockUserResolver) UserIDFromAccessToken(_ context.Context, token string) (string, error) {
	if id, ok := m.tokens[token]; ok {
		return id, nil
	}
	return "", contextutils.ErrInvalidToken
}

func newResolver() *mockUserResolver {
	return &mockUserResolver{
		users: map[string]*models.User{
			"u-1":     {ID: "u-1", Username: "citizen", UserType: models.UserTypeUser, IsVerified: true},
			"admin-1": {ID: "admin-1", Username: "kapitan", UserType: models.UserTypeAdmin, IsVerified: true},
		},
		tokens: map[string]string{
			"citizen-token": "u-1",
			"admin-token":   "admin-1",
			"ghost-token":   "deleted",
		},
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))
	return router
}

func setSessionCookie(t *testing.T, router *gin.Engine, values map[string]interface{}) *http.Cookie {
	setupPath := "/setup-session"
	router.GET(setupPath, func(c *gin.Context) {
		session := sessions.Default(c)
		for k, v := range values {
			session.Set(k, v)
		}
		if err := session.Save(); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, setupPath, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func whoAmI(c *gin.Context) {
	id, _ := CurrentUserID(c)
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"ctx":     contextutils.GetUserIDFromContext(c.Request.Context()),
		"hasUser": CurrentUser(c) != nil,
	})
}

func TestRequireAuth_Session(t *testing.T) {
	router := newTestRouter()
	resolver := newResolver()
	router.GET("/me", RequireAuth(resolver), whoAmI)
	cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: "u-1"})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "u-1", body["id"])
	assert.Equal(t, "u-1", body["ctx"])
	assert.Equal(t, true, body["hasUser"])
}

func TestRequireAuth_BearerToken(t *testing.T) {
	router := newTestRouter()
	router.GET("/me", RequireAuth(newResolver()), whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer citizen-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", decodeBody(t, w)["id"])
}

func TestRequireAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"no credentials", "", "UNAUTHORIZED"},
		{"unknown token", "Bearer nope", "UNAUTHORIZED"},
		{"wrong scheme", "Basic citizen-token", "UNAUTHORIZED"},
		{"empty bearer", "Bearer ", "UNAUTHORIZED"},
		{"deleted account", "Bearer ghost-token", "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			router.GET("/me", RequireAuth(newResolver()), whoAmI)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["code"])
		})
	}
}

func TestRequireAuth_LookupFailure(t *testing.T) {
	router := newTestRouter()
	resolver := newResolver()
	resolver.lookupErr = errors.New("connection refused")
	router.GET("/me", RequireAuth(resolver), whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer citizen-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, GenericErrorMessage, decodeBody(t, w)["error"])
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"admin", "admin-token", http.StatusOK},
		{"citizen", "citizen-token", http.StatusForbidden},
		{"anonymous", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			router.GET("/admin", RequireAdmin(newResolver()), whoAmI)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireAdmin_SessionTakesPrecedence(t *testing.T) {
	router := newTestRouter()
	router.GET("/admin", RequireAdmin(newResolver()), whoAmI)
	cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: "admin-1"})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	req.Header.Set("Authorization", "Bearer citizen-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", decodeBody(t, w)["id"])
}

func TestOptionalAuth(t *testing.T) {
	router := newTestRouter()
	router.GET("/maybe", OptionalAuth(newResolver()), whoAmI)

	anon := httptest.NewRecorder()
	router.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/maybe", nil))
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Equal(t, "", decodeBody(t, anon)["id"])
	assert.Equal(t, false, decodeBody(t, anon)["hasUser"])

	bad := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	bad.Header.Set("Authorization", "Bearer nope")
	badW := httptest.NewRecorder()
	router.ServeHTTP(badW, bad)
	require.Equal(t, http.StatusOK, badW.Code)
	assert.Equal(t, "", decodeBody(t, badW)["id"])

	good := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	good.Header.Set("Authorization", "bearer citizen-token")
	goodW := httptest.NewRecorder()
	router.ServeHTTP(goodW, good)
	require.Equal(t, http.StatusOK, goodW.Code)
	assert.Equal(t, "u-1", decodeBody(t, goodW)["id"])
}
