package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"noisewatch/internal/config"
	"noisewatch/internal/media"
	"noisewatch/internal/middleware"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	"noisewatch/internal/version"
)

// ServiceName identifies the API in traces and the route listing
const ServiceName = "noisewatch-backend"

// NewRouter creates the API engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	reportService services.ReportServiceInterface,
	notificationService services.NotificationServiceInterface,
	analyticsService services.AnalyticsServiceInterface,
	aggregationService services.AggregationServiceInterface,
	mediaStore media.Store,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(middleware.RequestLogger(logger))

	// Health check endpoint (defined before tracing, CORS and sessions)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	router.Use(observability.GinMiddlewareWithErrorHandling(ServiceName)...)
	router.Use(observability.PrometheusMiddleware())

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = strings.HasPrefix(cfg.Server.AppBaseURL, "https://")
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	if strings.EqualFold(cfg.Media.Backend, config.MediaBackendLocal) || cfg.Media.Backend == "" {
		router.Static(config.MediaRoutePrefix, cfg.Media.LocalDir)
	}

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info(ServiceName))
	})

	authHandler := NewAuthHandler(userService, logger)
	reportHandler := NewReportHandler(reportService, cfg, logger)
	adminHandler := NewAdminHandler(userService, notificationService, analyticsService, aggregationService, logger)
	userHandler := NewUserHandler(userService, mediaStore, cfg, logger)

	requireAuth := middleware.RequireAuth(userService)
	requireAdmin := middleware.RequireAdmin(userService)
	optionalAuth := middleware.OptionalAuth(userService)

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.GET("/verify", authHandler.VerifyEmail)
		auth.POST("/resend-verification", authHandler.ResendVerification)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/status", optionalAuth, authHandler.Status)
	}

	reports := router.Group("/reports")
	{
		reports.POST("/new-report", optionalAuth, reportHandler.SubmitReport)
		reports.GET("/get-report", reportHandler.ListReports)
		reports.PUT("/update-status/:id", requireAdmin, reportHandler.UpdateStatus)
		reports.GET("/my-reports", requireAuth, reportHandler.MyReports)
		reports.GET("/nearby", reportHandler.Nearby)
		reports.GET("/:id", reportHandler.GetReport)
		reports.GET("/:id/options", reportHandler.GetReportOptions)
		reports.DELETE("/:id", requireAdmin, reportHandler.DeleteReport)
	}

	users := router.Group("/users")
	{
		users.PUT("/me/profile-photo", requireAuth, userHandler.UpdateProfilePhoto)
	}

	admin := router.Group("/admin")
	admin.Use(requireAdmin)
	{
		admin.GET("/notifications", adminHandler.GetNotifications)
		admin.POST("/notifications/read", adminHandler.MarkNotificationsRead)
		admin.GET("/analytics", adminHandler.GetAnalytics)
		admin.GET("/users", adminHandler.ListUsers)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.POST("/aggregation/run", adminHandler.RunAggregation)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "code": "RECORD_NOT_FOUND"})
	})

	routeListing := NewRouteListingHandler(ServiceName)
	router.GET("/", routeListing.GetRouteListingJSON)
	routeListing.CollectRoutes(router)

	return router
}
