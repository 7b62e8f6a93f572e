package core

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// PanicHandler: Interface for handling job panics
// =============================================================================

// PanicHandler is called when a job body panics during execution.
// The job is still marked done and its dependents are still released.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a job panics.
	//
	// Parameters:
	// - ctx: The context of the panicked job (CurrentJob(ctx) returns it)
	// - centerName: The name of the Center running the job
	// - workerID: The ID of the worker, or ConsumerExecutorID for Consumers
	// - panicInfo: The panic value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, centerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, centerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	fields := []Field{
		F("center", centerName),
		F("worker", workerID),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	}
	if job := CurrentJob(ctx); job != nil {
		fields = append(fields, F("job", job.ID()), F("job_name", job.Name()))
	}
	logger.Error("job panicked", fields...)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting job execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting job execution performance.
type Metrics interface {
	// RecordJobDuration records how long a job body took to execute.
	RecordJobDuration(centerName string, category Category, duration time.Duration)

	// RecordJobPanic records that a job body panicked.
	RecordJobPanic(centerName string, category Category, panicInfo any)

	// RecordQueueDepth records the depth of a category queue after a push.
	RecordQueueDepth(centerName string, category Category, depth int)

	// RecordJobRejected records that a job was rejected or abandoned.
	//
	// Parameters:
	// - centerName: The name of the Center
	// - reason: Why the job was rejected (e.g., "shutting down", "abandoned")
	RecordJobRejected(centerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordJobDuration(centerName string, category Category, duration time.Duration) {
}
func (m *NilMetrics) RecordJobPanic(centerName string, category Category, panicInfo any) {}
func (m *NilMetrics) RecordQueueDepth(centerName string, category Category, depth int)   {}
func (m *NilMetrics) RecordJobRejected(centerName string, reason string)                 {}

// =============================================================================
// RejectedJobHandler: Interface for handling rejected jobs
// =============================================================================

// RejectedJobHandler is called when a job is rejected by the Center.
// This can happen when:
// - Dispatch is called after Shutdown began
// - Shutdown gave up draining and abandoned queued jobs
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedJobHandler interface {
	HandleRejectedJob(centerName string, job JobID, reason string)
}

// DefaultRejectedJobHandler logs rejected jobs at warn level.
type DefaultRejectedJobHandler struct {
	Logger Logger
}

func (h *DefaultRejectedJobHandler) HandleRejectedJob(centerName string, job JobID, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("job rejected", F("center", centerName), F("job", job), F("reason", reason))
}

// =============================================================================
// Config: Configuration for Center
// =============================================================================

const tracerName = "github.com/Swind/go-job-center"

// Config holds configuration options for a Center.
// All handlers are optional; if not provided, default implementations will be used.
type Config struct {
	// Name labels logs, metrics and spans. Defaults to a random UUID.
	Name string

	// WorkerCount is the number of background workers, each servicing DefaultRoute.
	// Ignored when Routes is set.
	WorkerCount int

	// Routes gives every worker its own ordered category list; one worker per route.
	// Routes must not contain CategoryMainThread.
	Routes [][]Category

	// IdleBackoff controls how idle workers wait for work.
	IdleBackoff IdleBackoff

	// HistoryCapacity bounds the execution history ring. Defaults to 100.
	HistoryCapacity int

	// Strict turns contract violations (illegal chaining, dependency overflow,
	// lifecycle misuse) into panics instead of returned errors.
	Strict bool

	// Logger defaults to the global zerolog logger.
	Logger Logger

	// PanicHandler is called when a job panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record job execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedJobHandler is called when a job is rejected. Defaults to DefaultRejectedJobHandler.
	RejectedJobHandler RejectedJobHandler

	// Tracer starts one span per job invocation. Defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// DefaultConfig returns a config with one worker per CPU and default handlers.
func DefaultConfig() Config {
	return Config{
		WorkerCount:     runtime.NumCPU(),
		IdleBackoff:     DefaultIdleBackoff(),
		HistoryCapacity: defaultJobHistoryCapacity,
	}
}

// routes expands WorkerCount into explicit routes and validates them.
func (c Config) routes() ([][]Category, error) {
	if len(c.Routes) == 0 {
		if c.WorkerCount < 1 {
			return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfig, c.WorkerCount)
		}
		routes := make([][]Category, c.WorkerCount)
		for i := range routes {
			routes[i] = DefaultRoute()
		}
		return routes, nil
	}

	routes := make([][]Category, len(c.Routes))
	for i, route := range c.Routes {
		if len(route) == 0 {
			return nil, fmt.Errorf("%w: worker %d has an empty route", ErrInvalidConfig, i)
		}
		for _, cat := range route {
			if !cat.Valid() {
				return nil, fmt.Errorf("%w: worker %d: %w: %d", ErrInvalidConfig, i, ErrInvalidCategory, int(cat))
			}
			if !cat.Background() {
				return nil, fmt.Errorf("%w: worker %d: %s is serviced by consumers only", ErrInvalidConfig, i, cat)
			}
		}
		routes[i] = append([]Category(nil), route...)
	}
	return routes, nil
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.RejectedJobHandler == nil {
		c.RejectedJobHandler = &DefaultRejectedJobHandler{Logger: c.Logger}
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	if c.HistoryCapacity < 1 {
		c.HistoryCapacity = defaultJobHistoryCapacity
	}
	c.IdleBackoff = c.IdleBackoff.normalized()
	return c
}
