// Package main provides the entry point for the NoiseWatch aggregation worker.
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
	"noisewatch/internal/worker"

	_ "time/tzdata"
)

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	if err == nil {
		return
	}
	logger.Error(ctx, msg, err, fields)
	_ = logger.Sync()
	os.Exit(1)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.WorkerServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		observability.Shutdown(shutdownCtx, logger, tp, mp)
	}()

	logger.Info(ctx, "Starting NoiseWatch worker service", map[string]interface{}{
		"port":     cfg.Server.WorkerPort,
		"enabled":  cfg.Aggregation.Enabled,
		"interval": cfg.Aggregation.Interval.String(),
		"timezone": cfg.Aggregation.Timezone,
	})

	container := di.NewServiceContainer(cfg, logger)
	fatalIfErr(ctx, logger, "Failed to initialize services", container.Initialize(ctx), nil)

	aggregationService, err := container.GetAggregationService()
	fatalIfErr(ctx, logger, "Failed to get aggregation service", err, nil)
	userService, err := container.GetUserService()
	fatalIfErr(ctx, logger, "Failed to get user service", err, nil)

	hostname, _ := os.Hostname()
	workerInstance := worker.NewWorker(aggregationService, hostname, cfg, logger)
	go workerInstance.Start(ctx)

	router := handlers.NewWorkerRouter(cfg, workerInstance, container.IsReady, userService, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.WorkerPort,
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Worker server starting", map[string]interface{}{"port": cfg.Server.WorkerPort})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info(ctx, "Worker server shutting down", map[string]interface{}{"service": "worker"})
	case err := <-serverErr:
		logger.Error(ctx, "Worker server failed", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
	defer shutdownCancel()

	// Stop the loop first so no pass starts while connections close
	if err := workerInstance.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Warning: failed to shutdown worker", map[string]interface{}{"error": err.Error(), "service": "worker"})
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Worker server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Failed to close connections", map[string]interface{}{"error": err.Error()})
	}

	logger.Info(ctx, "Worker server exited", map[string]interface{}{"service": "worker"})
}
