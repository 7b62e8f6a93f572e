package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type centerState int32

const (
	stateCreated centerState = iota
	stateRunning
	stateDraining
	stateStopped
)

func (s centerState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Center owns the category queues and the background workers, and routes
// ready jobs to them. It is an explicit context object: workers and
// Consumers hold a reference to the Center they serve.
type Center struct {
	name   string
	queues [CategoryCount]*CategoryQueue
	signal chan struct{}
	routes [][]Category
	idle   IdleBackoff

	workers      []*Worker
	delayManager *DelayManager

	// lifecycleMu orders dispatch admission against Shutdown: Dispatch holds
	// the read lock while it checks the state and counts the job outstanding.
	lifecycleMu sync.RWMutex
	state       centerState

	metricQueued [CategoryCount]atomic.Int32 // Waiting in a category queue
	metricActive atomic.Int32                // Executing in a worker or consumer
	outstanding  atomic.Int64                // Dispatched and not yet done
	waiting      sync.Map                    // JobID -> *Counter, dispatched with pending prerequisites
	waitingCount atomic.Int64
	completed    atomic.Int64
	rejected     atomic.Int64

	// Handlers and Metrics
	logger             Logger
	panicHandler       PanicHandler
	metrics            Metrics
	rejectedJobHandler RejectedJobHandler
	tracer             trace.Tracer

	strict  bool
	history executionHistory
}

// NewCenter validates cfg and builds a Center. Workers are not started until Startup.
func NewCenter(cfg Config) (*Center, error) {
	routes, err := cfg.routes()
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	name := cfg.Name
	if name == "" {
		name = uuid.NewString()
	}

	s := &Center{
		name:               name,
		signal:             make(chan struct{}, len(routes)*2),
		routes:             routes,
		idle:               cfg.IdleBackoff,
		delayManager:       NewDelayManager(),
		logger:             cfg.Logger,
		panicHandler:       cfg.PanicHandler,
		metrics:            cfg.Metrics,
		rejectedJobHandler: cfg.RejectedJobHandler,
		tracer:             cfg.Tracer,
		strict:             cfg.Strict,
		history:            newExecutionHistory(cfg.HistoryCapacity),
	}
	for i := range s.queues {
		s.queues[i] = NewCategoryQueue(Category(i))
	}
	return s, nil
}

// Name returns the name of the Center
func (s *Center) Name() string {
	return s.name
}

// WorkerCount returns the number of configured workers
func (s *Center) WorkerCount() int {
	return len(s.routes)
}

// Routes returns a copy of the per-worker category routes.
func (s *Center) Routes() [][]Category {
	out := make([][]Category, len(s.routes))
	for i, r := range s.routes {
		out[i] = append([]Category(nil), r...)
	}
	return out
}

func (s *Center) Logger() Logger {
	return s.logger
}

// IsRunning returns whether the workers are running
func (s *Center) IsRunning() bool {
	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()
	return s.state == stateRunning
}

// contractViolation returns err, or panics with it in strict mode.
func (s *Center) contractViolation(err error) error {
	if s.strict {
		panic(err)
	}
	return err
}

// =============================================================================
// Lifecycle
// =============================================================================

// Startup spawns the worker pool. It may be called once. Job bodies run by
// workers receive a context derived from ctx.
func (s *Center) Startup(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.state != stateCreated {
		return s.contractViolation(fmt.Errorf("%w: startup called while %s", ErrLifecycleMisuse, s.state))
	}

	s.workers = make([]*Worker, len(s.routes))
	for i, route := range s.routes {
		s.workers[i] = newWorker(ctx, i, s, route)
		s.workers[i].start()
	}
	s.state = stateRunning

	s.logger.Info("center started", F("center", s.name), F("workers", len(s.workers)))
	return nil
}

// Shutdown stops accepting new dispatches, drains all previously dispatched
// work, joins every worker, and releases the queues.
//
// Main-thread jobs still queued are executed on the calling goroutine, which
// should be the goroutine owning the main-thread Consumer. If the Center was
// never started, background jobs are drained on the calling goroutine too.
//
// If ctx ends before the drain completes, the remaining queued jobs are
// abandoned and reported to the RejectedJobHandler, and the ctx error is
// returned. Dispatched jobs whose prerequisites can never complete are
// rejected as unreachable and ErrUnreachableJobs is returned.
//
// Bodies drained on the calling goroutine receive ctx.
func (s *Center) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx, ctx)
}

// shutdown drains until ctx ends. Bodies run inline receive bodyCtx.
func (s *Center) shutdown(ctx, bodyCtx context.Context) error {
	s.lifecycleMu.Lock()
	if s.state == stateDraining || s.state == stateStopped {
		state := s.state
		s.lifecycleMu.Unlock()
		return s.contractViolation(fmt.Errorf("%w: shutdown called while %s", ErrLifecycleMisuse, state))
	}
	wasRunning := s.state == stateRunning
	s.state = stateDraining
	s.lifecycleMu.Unlock()

	s.logger.Info("center draining", F("center", s.name), F("outstanding", s.outstanding.Load()))

	// Delayed dispatches were already accepted; release them now.
	s.delayManager.Flush()
	s.delayManager.Stop()

	drainErr := s.drain(ctx, bodyCtx, wasRunning)

	// A worker stuck in a long body must not hold up an expired shutdown.
	for _, w := range s.workers {
		if drainErr != nil && !errors.Is(drainErr, ErrUnreachableJobs) {
			w.detach()
		} else {
			w.join()
		}
	}

	abandoned := 0
	for _, q := range s.queues {
		for _, c := range q.Clear() {
			abandoned++
			s.metricQueued[c.category].Add(-1)
			s.outstanding.Add(-1)
			s.reject(c.id, "abandoned")
		}
	}

	s.lifecycleMu.Lock()
	s.workers = nil
	s.state = stateStopped
	s.lifecycleMu.Unlock()

	if drainErr != nil {
		s.logger.Error("center shutdown incomplete",
			F("center", s.name), F("abandoned", abandoned), F("outstanding", s.outstanding.Load()), F("error", drainErr))
		return drainErr
	}

	s.logger.Info("center stopped", F("center", s.name), F("completed", s.completed.Load()))
	return nil
}

func (s *Center) drain(ctx, bodyCtx context.Context, wasRunning bool) error {
	// Main-thread jobs and categories no route covers have no worker to run them.
	unserved := NewConsumer(s, s.unrouted()...).WithContext(bodyCtx)
	all := NewConsumer(s, CategoryMainThread, CategoryGeneric, CategoryGenericSlow, CategoryIO).WithContext(bodyCtx)

	attempt := 0
	for {
		inline := unserved
		if !wasRunning || !s.workersAlive() {
			inline = all
		}
		if inline.ConsumeAll() > 0 {
			attempt = 0
		}
		outstanding := s.outstanding.Load()
		if outstanding == 0 {
			return nil
		}
		// Nothing queued or running is left to release the waiting jobs.
		if outstanding == s.waitingCount.Load() {
			n := s.abandonWaiting()
			return fmt.Errorf("center %s drain: %d jobs: %w", s.name, n, ErrUnreachableJobs)
		}

		timer := time.NewTimer(s.idle.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("center %s drain: %w", s.name, ctx.Err())
		case <-timer.C:
		}
		attempt++
	}
}

// abandonWaiting rejects every dispatched job still waiting on prerequisites.
func (s *Center) abandonWaiting() int {
	n := 0
	s.waiting.Range(func(key, _ any) bool {
		if _, ok := s.waiting.LoadAndDelete(key); ok {
			n++
			s.waitingCount.Add(-1)
			s.outstanding.Add(-1)
			s.reject(key.(JobID), "unreachable")
		}
		return true
	})
	return n
}

// unrouted returns the categories no worker route services.
func (s *Center) unrouted() []Category {
	var served [CategoryCount]bool
	for _, route := range s.routes {
		for _, cat := range route {
			served[cat] = true
		}
	}
	var out []Category
	for i, ok := range served {
		if !ok {
			out = append(out, Category(i))
		}
	}
	return out
}

// workersAlive reports whether any worker is still running. Workers stop
// early when the Startup context is cancelled.
func (s *Center) workersAlive() bool {
	for _, w := range s.workers {
		if w.State() == WorkerRunning {
			return true
		}
	}
	return false
}

// =============================================================================
// Submission
// =============================================================================

// Create wraps body in a new Counter for category. The Counter is not
// dispatched.
func (s *Center) Create(body Task, category Category, opts ...CounterOption) (*Counter, error) {
	if body == nil {
		return nil, ErrNilBody
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, int(category))
	}
	return newCounter(s, body, category, opts...), nil
}

// Chain makes dependent wait for prerequisite. It must be called before
// dependent is dispatched. Chaining onto a prerequisite that has already
// completed is a no-op.
func (s *Center) Chain(prerequisite, dependent *Counter) error {
	if prerequisite == nil || dependent == nil {
		return ErrNilCounter
	}
	if prerequisite.center != s || dependent.center != s {
		return s.contractViolation(ErrForeignCounter)
	}
	if prerequisite == dependent {
		return s.contractViolation(fmt.Errorf("%w: %s chained onto itself", ErrIllegalChainOrder, dependent.id))
	}
	if dependent.Dispatched() {
		return s.contractViolation(fmt.Errorf("%w: %s was already dispatched", ErrIllegalChainOrder, dependent.id))
	}
	if err := prerequisite.chain(dependent); err != nil {
		return s.contractViolation(err)
	}
	return nil
}

// Dispatch releases the Counter's own pending unit. The body is queued now
// if every prerequisite has completed, otherwise when the last one does.
func (s *Center) Dispatch(c *Counter) error {
	return s.dispatch(c, 0)
}

// DispatchAfter dispatches c now but releases its own pending unit only after
// delay. Chaining onto c afterwards is illegal, as with Dispatch.
func (s *Center) DispatchAfter(c *Counter, delay time.Duration) error {
	return s.dispatch(c, delay)
}

// DispatchBody creates a Counter without prerequisites and dispatches it.
func (s *Center) DispatchBody(body Task, category Category, opts ...CounterOption) (WeakHandle, error) {
	c, err := s.Create(body, category, opts...)
	if err != nil {
		return WeakHandle{}, err
	}
	if err := s.Dispatch(c); err != nil {
		return WeakHandle{}, err
	}
	return c.Weak(), nil
}

func (s *Center) dispatch(c *Counter, delay time.Duration) error {
	if c == nil {
		return ErrNilCounter
	}
	if c.center != s {
		return s.contractViolation(ErrForeignCounter)
	}

	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()

	if s.state == stateDraining || s.state == stateStopped {
		s.reject(c.id, "shutting down")
		return s.contractViolation(fmt.Errorf("%w: dispatch of %s after shutdown", ErrLifecycleMisuse, c.id))
	}
	if !c.markDispatched() {
		return s.contractViolation(fmt.Errorf("%w: %s", ErrAlreadyDispatched, c.id))
	}
	s.outstanding.Add(1)
	s.waiting.Store(c.id, c)
	s.waitingCount.Add(1)

	if delay > 0 {
		s.delayManager.Add(c, delay)
		return nil
	}
	c.release()
	return nil
}

func (s *Center) reject(id JobID, reason string) {
	s.rejected.Add(1)
	s.rejectedJobHandler.HandleRejectedJob(s.name, id, reason)
	s.metrics.RecordJobRejected(s.name, reason)
}

// unpark removes c from the waiting set once its last unit is released.
func (s *Center) unpark(c *Counter) {
	if _, ok := s.waiting.LoadAndDelete(c.id); ok {
		s.waitingCount.Add(-1)
	}
}

// enqueue makes a ready job visible to its category.
func (s *Center) enqueue(c *Counter) {
	q := s.queues[c.category]
	q.Push(c)
	depth := s.metricQueued[c.category].Add(1)
	s.metrics.RecordQueueDepth(s.name, c.category, int(depth))

	if c.category.Background() {
		select {
		case s.signal <- struct{}{}:
		default:
			// Signal channel full, but the job is already queued
			// This is not an error, just a optimization hint
		}
	}
}

// claim pops the first available job in route order.
func (s *Center) claim(route []Category) (*Counter, bool) {
	for _, cat := range route {
		if c, ok := s.queues[cat].Pop(); ok {
			s.metricQueued[cat].Add(-1)
			return c, true
		}
	}
	return nil, false
}

// execute runs body for c, recovering panics, and records the execution.
func (s *Center) execute(ctx context.Context, c *Counter, body Task, executor int) (panicked bool) {
	runCtx := withExecution(ctx, c, executor)
	runCtx, span := s.tracer.Start(runCtx, "jobcenter.invoke",
		trace.WithAttributes(
			attribute.String("jobcenter.center", s.name),
			attribute.Int64("jobcenter.job.id", int64(c.id)),
			attribute.String("jobcenter.job.name", c.name),
			attribute.String("jobcenter.job.category", c.category.String()),
			attribute.Int("jobcenter.executor", executor),
		))

	s.metricActive.Add(1)
	startedAt := time.Now()

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			span.SetStatus(codes.Error, fmt.Sprint(r))
			s.panicHandler.HandlePanic(runCtx, s.name, executor, r, debug.Stack())
			s.metrics.RecordJobPanic(s.name, c.category, r)
		}

		finishedAt := time.Now()
		duration := finishedAt.Sub(startedAt)
		s.metricActive.Add(-1)
		s.metrics.RecordJobDuration(s.name, c.category, duration)
		s.history.Add(JobExecutionRecord{
			JobID:      c.id,
			Name:       c.name,
			CenterName: s.name,
			Category:   c.category,
			WorkerID:   executor,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   duration,
			Panicked:   panicked,
		})
		span.End()
	}()

	body(runCtx)
	return false
}

// finish accounts for a job whose completion has cascaded.
func (s *Center) finish() {
	s.completed.Add(1)
	s.outstanding.Add(-1)
}

// waitForWork blocks until a wakeup signal, the backoff delay, or stop.
// It returns false when stop fired.
func (s *Center) waitForWork(stop <-chan struct{}, attempt int) bool {
	timer := time.NewTimer(s.idle.delay(attempt))
	defer timer.Stop()

	select {
	case <-s.signal:
		return true
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}

// =============================================================================
// Observability
// =============================================================================

func (s *Center) QueuedJobCount(category Category) int {
	if !category.Valid() {
		return 0
	}
	return int(s.metricQueued[category].Load())
}

func (s *Center) ActiveJobCount() int       { return int(s.metricActive.Load()) }
func (s *Center) OutstandingJobCount() int64 { return s.outstanding.Load() }
func (s *Center) DelayedJobCount() int      { return s.delayManager.TaskCount() }

// Stats returns current observability data for this Center.
func (s *Center) Stats() CenterStats {
	s.lifecycleMu.RLock()
	state := s.state
	s.lifecycleMu.RUnlock()

	stats := CenterStats{
		Name:        s.name,
		State:       state.String(),
		Workers:     len(s.routes),
		Running:     state == stateRunning,
		Categories:  make([]CategoryStats, CategoryCount),
		Active:      s.ActiveJobCount(),
		Outstanding: s.outstanding.Load(),
		Delayed:     s.DelayedJobCount(),
		Completed:   s.completed.Load(),
		Rejected:    s.rejected.Load(),
	}
	for i := range stats.Categories {
		stats.Categories[i] = CategoryStats{Category: Category(i), Queued: s.QueuedJobCount(Category(i))}
	}
	if last, ok := s.history.Last(); ok {
		stats.LastJobName = last.Name
		stats.LastJobAt = last.FinishedAt
	}
	return stats
}

// RecentJobs returns completed job execution records in newest-first order.
func (s *Center) RecentJobs(limit int) []JobExecutionRecord {
	return s.history.Recent(limit)
}
