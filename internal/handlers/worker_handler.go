package handlers

import (
	"context"
	"net/http"

	"noisewatch/internal/config"
	"noisewatch/internal/middleware"
	"noisewatch/internal/observability"
	"noisewatch/internal/version"
	"noisewatch/internal/worker"

	"github.com/gin-gonic/gin"
)

// WorkerServiceName identifies the aggregation worker in telemetry and route listings
const WorkerServiceName = "noisewatch-worker"

// WorkerController is the part of the aggregation worker exposed over HTTP
type WorkerController interface {
	GetStatus() worker.Status
	GetHistory() []worker.RunRecord
	GetActivityLogs() []worker.ActivityLog
	GetInstance() string
	TriggerManualRun() bool
	Pause(ctx context.Context)
	Resume(ctx context.Context)
}

var _ WorkerController = (*worker.Worker)(nil)

// WorkerHandler serves the worker's status and controls
type WorkerHandler struct {
	worker WorkerController
	ready  func() bool
	logger *observability.Logger
}

// NewWorkerHandler creates a new WorkerHandler. ready reports whether the record store is reachable.
func NewWorkerHandler(w WorkerController, ready func() bool, logger *observability.Logger) *WorkerHandler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &WorkerHandler{worker: w, ready: ready, logger: logger}
}

// Health reports liveness plus store readiness
func (h *WorkerHandler) Health(c *gin.Context) {
	status := h.worker.GetStatus()
	body := gin.H{
		"status":   "ok",
		"service":  WorkerServiceName,
		"instance": h.worker.GetInstance(),
		"running":  status.IsRunning,
	}
	if !h.ready() {
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// GetStatus returns the current worker status
func (h *WorkerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"status":   h.worker.GetStatus(),
	})
}

// GetHistory returns recent aggregation runs
func (h *WorkerHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": h.worker.GetHistory()})
}

// GetActivityLogs returns recent worker activity
func (h *WorkerHandler) GetActivityLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.worker.GetActivityLogs()})
}

// PauseWorker stops scheduled passes
func (h *WorkerHandler) PauseWorker(c *gin.Context) {
	h.worker.Pause(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Worker paused"})
}

// ResumeWorker restarts scheduled passes
func (h *WorkerHandler) ResumeWorker(c *gin.Context) {
	h.worker.Resume(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Worker resumed"})
}

// TriggerWorkerRun queues an immediate pass
func (h *WorkerHandler) TriggerWorkerRun(c *gin.Context) {
	if !h.worker.TriggerManualRun() {
		c.JSON(http.StatusAccepted, gin.H{"message": "A run is already pending"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Aggregation run triggered"})
}

// NewWorkerRouter builds the worker's HTTP surface. Controls require an administrator.
func NewWorkerRouter(cfg *config.Config, w WorkerController, ready func() bool, users middleware.UserResolver, logger *observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	handler := NewWorkerHandler(w, ready, logger)

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	router.Use(observability.GinMiddlewareWithErrorHandling(WorkerServiceName)...)
	router.Use(observability.PrometheusMiddleware())

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info(WorkerServiceName))
	})
	router.GET("/status", handler.GetStatus)

	admin := router.Group("/admin/worker")
	admin.Use(middleware.RequireAdmin(users))
	{
		admin.GET("/history", handler.GetHistory)
		admin.GET("/logs", handler.GetActivityLogs)
		admin.POST("/pause", handler.PauseWorker)
		admin.POST("/resume", handler.ResumeWorker)
		admin.POST("/trigger", handler.TriggerWorkerRun)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "code": "RECORD_NOT_FOUND"})
	})

	routeListing := NewRouteListingHandler(WorkerServiceName)
	router.GET("/", routeListing.GetRouteListingJSON)
	routeListing.CollectRoutes(router)

	return router
}
