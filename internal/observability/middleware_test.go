package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecordingTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]string {
	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestGinMiddleware_BasicFunctionality(t *testing.T) {
	recorder := setupRecordingTracer(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("test-service"))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	require.Len(t, recorder.Ended(), 1)
}

func TestGinMiddleware_ContinuesIncomingTrace(t *testing.T) {
	recorder := setupRecordingTracer(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("test-service"))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("traceparent", "00-12345678901234567890123456789012-1234567890123456-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "12345678901234567890123456789012", spans[0].SpanContext().TraceID().String())
}

func TestGinMiddlewareWithErrorHandling_SuccessLeavesSpanUnset(t *testing.T) {
	recorder := setupRecordingTracer(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddlewareWithErrorHandling("test-service")...)
	router.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.NotContains(t, spanAttrs(spans[0]), "error.severity")
}

func TestGinMiddlewareWithErrorHandling_AnnotatesFailures(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		handler      gin.HandlerFunc
		wantCode     int
		wantSeverity string
		wantAppCode  string
	}{
		{
			name:         "client error",
			path:         "/bad",
			handler:      func(c *gin.Context) { c.JSON(http.StatusBadRequest, gin.H{"error": "bad"}) },
			wantCode:     http.StatusBadRequest,
			wantSeverity: "warn",
		},
		{
			name:         "server error",
			path:         "/boom",
			handler:      func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"}) },
			wantCode:     http.StatusInternalServerError,
			wantSeverity: "error",
		},
		{
			name: "app error",
			path: "/conflict",
			handler: func(c *gin.Context) {
				c.Set("user_id", "u-1")
				_ = c.Error(contextutils.ErrConflict)
				c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
			},
			wantCode:     http.StatusConflict,
			wantSeverity: string(contextutils.ErrConflict.Severity),
			wantAppCode:  string(contextutils.ErrorCodeConflict),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := setupRecordingTracer(t)

			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(GinMiddlewareWithErrorHandling("test-service")...)
			router.GET(tt.path, tt.handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)

			attrs := spanAttrs(spans[0])
			assert.Equal(t, tt.wantSeverity, attrs["error.severity"])
			assert.Equal(t, tt.path, attrs["http.route"])
			if tt.wantAppCode != "" {
				assert.Equal(t, tt.wantAppCode, attrs["error.code"])
				assert.Equal(t, "u-1", attrs["error.user_id"])
			}
		})
	}
}
