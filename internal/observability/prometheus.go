package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ReportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noisewatch_reports_submitted_total",
	Help: "Number of noise reports submitted",
}, []string{"noise_level"})

var ReportsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "noisewatch_reports_deleted_total",
	Help: "Number of noise reports deleted",
})

var StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noisewatch_status_transitions_total",
	Help: "Number of administrator status updates applied",
}, []string{"status"})

var StatusConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "noisewatch_status_conflicts_total",
	Help: "Number of status updates rejected because the report changed underneath",
})

var AggregationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noisewatch_aggregation_runs_total",
	Help: "Number of consecutive-day aggregation passes",
}, []string{"result"})

var AggregationUpdates = promauto.NewCounter(prometheus.CounterOpts{
	Name: "noisewatch_aggregation_updates_total",
	Help: "Number of reports whose consecutive-day count was raised",
})

var UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "noisewatch_users_registered_total",
	Help: "Number of user registrations",
})

var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noisewatch_cache_lookups_total",
	Help: "Analytics cache lookups by outcome",
}, []string{"outcome"})

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noisewatch_http_requests_total",
	Help: "HTTP requests by route and status code",
}, []string{"method", "route", "code"})

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "noisewatch_http_request_duration_seconds",
	Help:    "HTTP request latency",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// PrometheusMiddleware records request counts and latency per matched route
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler serves the default Prometheus registry
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
