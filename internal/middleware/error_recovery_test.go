package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRecoveryMiddleware_PanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(observability.NewNopLogger()))
	router.GET("/panic", func(_ *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, GenericErrorMessage, body["error"])
	assert.NotContains(t, w.Body.String(), "test panic")
}

func TestErrorRecoveryMiddleware_NormalRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(nil))
	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/normal", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *contextutils.AppError
		status int
	}{
		{contextutils.ErrValidationFailed, http.StatusBadRequest},
		{contextutils.ErrMissingRequired, http.StatusBadRequest},
		{contextutils.ErrInvalidFormat, http.StatusBadRequest},
		{contextutils.ErrInvalidCredentials, http.StatusBadRequest},
		{contextutils.ErrInvalidToken, http.StatusBadRequest},
		{contextutils.ErrUnauthorized, http.StatusUnauthorized},
		{contextutils.ErrEmailNotVerified, http.StatusForbidden},
		{contextutils.ErrForbidden, http.StatusForbidden},
		{contextutils.ErrRecordNotFound, http.StatusNotFound},
		{contextutils.ErrConflict, http.StatusConflict},
		{contextutils.ErrRecordExists, http.StatusConflict},
		{contextutils.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{contextutils.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrInternalError, http.StatusInternalServerError},
		{contextutils.ErrDatabaseQuery, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err.Code))
		})
	}
}

func TestHandleAppError_ClientErrorKeepsMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/login", func(c *gin.Context) {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrEmailNotVerified, "Please verify your email before logging in"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Please verify your email before logging in", body["error"])
	assert.Equal(t, "EMAIL_NOT_VERIFIED", body["code"])
	assert.NotContains(t, body, "details")
}

func TestHandleAppError_InternalErrorIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var recorded []error
	router.GET("/boom", func(c *gin.Context) {
		HandleAppError(c, errors.New("pq: password authentication failed"))
		for _, e := range c.Errors {
			recorded = append(recorded, e.Err)
		}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password authentication")
	assert.Equal(t, GenericErrorMessage, decodeBody(t, w)["message"])
	require.Len(t, recorded, 1)
	assert.EqualError(t, recorded[0], "pq: password authentication failed")
}

func TestStandardizeAppError_LocalizedMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/missing", func(c *gin.Context) {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrRecordNotFound, "report not found"))
	})

	tests := []struct {
		acceptLanguage string
		want           string
	}{
		{"fil-PH,fil;q=0.9,en;q=0.8", "Hindi nahanap ang tala"},
		{"ceb", "Wala makit-i ang rekord"},
		{"de-DE", "Record not found"},
		{"", "Record not found"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		if tt.acceptLanguage != "" {
			req.Header.Set("Accept-Language", tt.acceptLanguage)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "report not found", body["message"])
		assert.Equal(t, tt.want, body["localizedMessage"], tt.acceptLanguage)
	}
}
