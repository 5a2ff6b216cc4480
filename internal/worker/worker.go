// Package worker runs the consecutive-day aggregator in the background. It ticks on the
// configured interval, accepts manual triggers from the admin API, keeps a short run history
// and reports its health. The worker runs independently of HTTP request handling.
package worker

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"

	"go.opentelemetry.io/otel/attribute"
)

const maxActivityLogs = 100

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool                        `json:"isRunning"`
	IsPaused        bool                        `json:"isPaused"`
	CurrentActivity string                      `json:"currentActivity,omitempty"`
	LastRunStart    time.Time                   `json:"lastRunStart"`
	LastRunFinish   time.Time                   `json:"lastRunFinish"`
	LastRunError    string                      `json:"lastRunError,omitempty"`
	LastResult      *services.AggregationResult `json:"lastResult,omitempty"`
	NextRun         time.Time                   `json:"nextRun"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	Details   string        `json:"details"`
}

// ActivityLog represents a single activity log entry
type ActivityLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // INFO, WARN, ERROR
	Message   string    `json:"message"`
}

// Config holds worker-specific configuration
type Config struct {
	StartWorkerPaused bool
	Interval          time.Duration
	Enabled           bool
	MaxHistory        int
}

// Worker runs aggregation passes in the background
type Worker struct {
	aggregation   services.AggregationServiceInterface
	instance      string
	status        Status
	history       []RunRecord
	activityLogs  []ActivityLog
	mu            sync.RWMutex
	runMu         sync.Mutex // one pass at a time
	manualTrigger chan bool
	workerCfg     Config
	logger        *observability.Logger

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorker creates a worker for the aggregation settings in cfg
func NewWorker(aggregation services.AggregationServiceInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if instance == "" {
		instance = "default"
	}

	interval := cfg.Aggregation.Interval
	if interval <= 0 {
		interval = config.DefaultAggregationInterval
	}
	maxHistory := cfg.Server.MaxHistory
	if maxHistory <= 0 {
		maxHistory = config.DefaultMaxHistory
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		aggregation:   aggregation,
		instance:      instance,
		status:        Status{CurrentActivity: "Initialized"},
		history:       make([]RunRecord, 0, maxHistory),
		activityLogs:  make([]ActivityLog, 0, maxActivityLogs),
		manualTrigger: make(chan bool, 1),
		workerCfg: Config{
			StartWorkerPaused: getEnvBool("WORKER_START_PAUSED", false),
			Interval:          interval,
			Enabled:           cfg.Aggregation.Enabled,
			MaxHistory:        maxHistory,
		},
		logger:  logger,
		timeNow: time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.status.IsPaused = w.workerCfg.StartWorkerPaused
	return w
}

// getEnvBool is a helper function to get boolean environment variables
func getEnvBool(key string, defaultValue bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// Start runs the loop until ctx is cancelled or Shutdown is called. Scheduled passes only
// happen when aggregation is enabled; manual triggers are always honoured.
func (w *Worker) Start(ctx context.Context) {
	var tick <-chan time.Time
	if w.workerCfg.Enabled {
		ticker := time.NewTicker(w.workerCfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.mu.Lock()
	w.status.IsRunning = true
	w.status.CurrentActivity = "Idle"
	if w.workerCfg.Enabled {
		w.status.NextRun = w.timeNow().Add(w.workerCfg.Interval)
	}
	paused := w.status.IsPaused
	w.mu.Unlock()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance": w.instance,
		"enabled":  w.workerCfg.Enabled,
		"interval": w.workerCfg.Interval.String(),
		"paused":   paused,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s started", w.instance))

	for {
		select {
		case <-ctx.Done():
			w.stopped(ctx)
			return

		case <-w.ctx.Done():
			w.stopped(ctx)
			return

		case <-tick:
			w.mu.Lock()
			w.status.NextRun = w.timeNow().Add(w.workerCfg.Interval)
			w.mu.Unlock()
			w.run(ctx)

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.logActivity("INFO", fmt.Sprintf("Worker %s triggered manually", w.instance))
			w.run(ctx)
		}
	}
}

func (w *Worker) stopped(ctx context.Context) {
	w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s shutting down", w.instance))
	w.mu.Lock()
	w.status.IsRunning = false
	w.status.CurrentActivity = "Stopped"
	w.mu.Unlock()
}

// run executes a single worker cycle unless paused
func (w *Worker) run(parent context.Context) {
	ctx, span := observability.TraceWorkerFunction(parent, "run",
		attribute.String("worker.instance", w.instance),
	)
	var err error
	defer observability.FinishSpan(span, &err)

	w.mu.RLock()
	paused := w.status.IsPaused
	w.mu.RUnlock()
	if paused {
		span.SetAttributes(attribute.String("pause_reason", "Worker instance paused"))
		w.updateActivity("Worker instance paused")
		return
	}

	_, err = w.RunOnce(ctx)
}

// RunOnce performs one aggregation pass now and records it in the history
func (w *Worker) RunOnce(ctx context.Context) (*services.AggregationResult, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := w.timeNow()
	w.mu.Lock()
	w.status.LastRunStart = start
	w.status.CurrentActivity = "Aggregating consecutive days"
	w.mu.Unlock()

	result, err := w.aggregation.Run(ctx)

	finish := w.timeNow()
	details := ""
	if result != nil {
		details = fmt.Sprintf("scanned %d, raised %d of %d planned, %d failed", result.Scanned, result.Raised, result.Planned, result.Failed)
	}

	w.mu.Lock()
	w.status.LastRunFinish = finish
	w.status.CurrentActivity = "Idle"
	if result != nil {
		w.status.LastResult = result
	}
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
		})
		w.logActivity("ERROR", fmt.Sprintf("Aggregation failed: %v", err))
	} else {
		w.logActivity("INFO", "Aggregation finished: "+details)
	}

	w.recordRunHistory(start, finish, details, err)
	return result, err
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(start, finish time.Time, details string, err error) {
	record := RunRecord{
		StartTime: start,
		EndTime:   finish,
		Duration:  finish.Sub(start),
		Details:   details,
	}
	if err != nil {
		record.Status = "Failure"
		record.Details = err.Error()
	} else {
		record.Status = "Success"
	}
	w.mu.Lock()
	w.history = append(w.history, record)
	if len(w.history) > w.workerCfg.MaxHistory {
		w.history = w.history[len(w.history)-w.workerCfg.MaxHistory:]
	}
	w.mu.Unlock()
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the worker's run history
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	// Return a copy to avoid race conditions
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetActivityLogs returns recent activity logs
func (w *Worker) GetActivityLogs() []ActivityLog {
	w.mu.RLock()
	defer w.mu.RUnlock()

	logs := make([]ActivityLog, len(w.activityLogs))
	copy(logs, w.activityLogs)
	return logs
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun asks the loop for a pass. It never blocks: a pending trigger absorbs new ones.
func (w *Worker) TriggerManualRun() bool {
	ctx := context.Background()
	select {
	case w.manualTrigger <- true:
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
		return true
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
		return false
	}
}

// Pause stops scheduled and triggered passes until Resume
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s paused", w.instance))
}

// Resume resumes the worker
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s resumed", w.instance))
}

// Shutdown stops the loop and waits for an in-flight pass to finish or ctx to expire
func (w *Worker) Shutdown(ctx context.Context) error {
	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.runMu.Lock()
		w.runMu.Unlock() //nolint:staticcheck // waiting for the in-flight pass
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}

func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.CurrentActivity = activity
}

// logActivity adds an activity log entry
func (w *Worker) logActivity(level, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.activityLogs = append(w.activityLogs, ActivityLog{
		Timestamp: w.timeNow(),
		Level:     level,
		Message:   message,
	})
	if len(w.activityLogs) > maxActivityLogs {
		w.activityLogs = w.activityLogs[len(w.activityLogs)-maxActivityLogs:]
	}
}
