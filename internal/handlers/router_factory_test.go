package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter_Health(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(request{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"noisewatch-backend"}`, w.Body.String())
}

func TestNewRouter_Version(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(request{method: http.MethodGet, path: "/version"})
	require.Equal(t, http.StatusOK, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, ServiceName, body["service"])
	assert.NotEmpty(t, body["goVersion"])
}

func TestNewRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(request{method: http.MethodGet, path: "/version"})

	w := env.do(request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNewRouter_NoRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(request{method: http.MethodGet, path: "/quiz/question"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RECORD_NOT_FOUND", errorBody(t, w)["code"])
}

func TestNewRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(request{method: http.MethodGet, path: "/version"})
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNewRouter_ServesLocalMedia(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.Media.LocalDir, "clip.wav"), []byte("RIFF"), 0o600))

	w := env.do(request{method: http.MethodGet, path: "/media/clip.wav"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RIFF", w.Body.String())
}

func TestNewRouter_RouteListing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(request{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/reports/update-status/:id")
	assert.Contains(t, w.Body.String(), "/admin/aggregation/run")
}
