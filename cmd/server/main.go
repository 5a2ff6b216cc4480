// Package main provides the main entry point for the NoiseWatch API server.
// It sets up the HTTP server, record store connections, middleware, and API routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/di"
	"noisewatch/internal/handlers"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"

	// Bundled zone database so aggregation.timezone resolves in minimal containers
	_ "time/tzdata"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	userService, err := container.GetUserService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user service")
	}

	reportService, err := container.GetReportService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report service")
	}

	notificationService, err := container.GetNotificationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get notification service")
	}

	analyticsService, err := container.GetAnalyticsService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get analytics service")
	}

	aggregationService, err := container.GetAggregationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get aggregation service")
	}

	mediaStore, err := container.GetMediaStore()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get media store")
	}

	router := handlers.NewRouter(
		container.GetConfig(),
		userService,
		reportService,
		notificationService,
		analyticsService,
		aggregationService,
		mediaStore,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
		server: &http.Server{
			Addr:              ":" + container.GetConfig().Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails
func (a *Application) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains in-flight requests, then closes store and cache connections
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.container.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.ServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		observability.Shutdown(shutdownCtx, logger, tp, mp)
	}()

	logger.Info(ctx, "Starting NoiseWatch backend service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"storage":  cfg.Storage.Driver,
		"media":    cfg.Media.Backend,
		"logLevel": cfg.Server.LogLevel,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	if err := container.EnsureAdminUser(ctx); err != nil {
		logger.Error(ctx, "Failed to ensure admin user exists", err, map[string]interface{}{"admin_email": cfg.Server.AdminEmail})
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx); err != nil {
			appErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
