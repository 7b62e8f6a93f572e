package jobcenter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-job-center/core"
)

// =============================================================================
// Default Center Helper (Singleton)
// =============================================================================

var (
	defaultCenter *core.Center
	defaultMu     sync.Mutex
)

// Startup creates and starts the default Center with workerCount workers
// servicing the default route.
func Startup(workerCount int) error {
	cfg := core.DefaultConfig()
	cfg.Name = "default"
	cfg.WorkerCount = workerCount
	return StartupWithConfig(cfg)
}

// StartupWithConfig creates and starts the default Center from cfg.
// It fails with ErrLifecycleMisuse if the default Center is already running.
func StartupWithConfig(cfg core.Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCenter != nil {
		return fmt.Errorf("%w: default center already started", core.ErrLifecycleMisuse)
	}

	center, err := core.NewCenter(cfg)
	if err != nil {
		return err
	}
	if err := center.Startup(context.Background()); err != nil {
		return err
	}
	defaultCenter = center
	return nil
}

// Shutdown drains and stops the default Center. Main-thread jobs still queued
// run on the calling goroutine. After Shutdown, Startup may be called again.
func Shutdown(ctx context.Context) error {
	defaultMu.Lock()
	center := defaultCenter
	defaultCenter = nil
	defaultMu.Unlock()

	if center == nil {
		return fmt.Errorf("%w: default center not started", core.ErrLifecycleMisuse)
	}
	return center.Shutdown(ctx)
}

// Default returns the default Center.
// It panics if Startup has not been called.
func Default() *core.Center {
	center, err := current()
	if err != nil {
		panic(err)
	}
	return center
}

func current() (*core.Center, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCenter == nil {
		return nil, fmt.Errorf("%w: default center not started, call Startup first", core.ErrLifecycleMisuse)
	}
	return defaultCenter, nil
}

// =============================================================================
// Job helpers on the default Center
// =============================================================================

// Create wraps body in a new, undispatched Counter.
func Create(body Task, category Category, opts ...CounterOption) (*Counter, error) {
	center, err := current()
	if err != nil {
		return nil, err
	}
	return center.Create(body, category, opts...)
}

// DispatchCounter dispatches a Counter made by Create.
func DispatchCounter(c *Counter) error {
	center, err := current()
	if err != nil {
		return err
	}
	return center.Dispatch(c)
}

// Dispatch creates a job without prerequisites and dispatches it.
func Dispatch(body Task, category Category, opts ...CounterOption) (WeakHandle, error) {
	center, err := current()
	if err != nil {
		return WeakHandle{}, err
	}
	return center.DispatchBody(body, category, opts...)
}

// DispatchAfter creates a job and dispatches it once delay has elapsed.
func DispatchAfter(body Task, category Category, delay time.Duration) (WeakHandle, error) {
	center, err := current()
	if err != nil {
		return WeakHandle{}, err
	}
	c, err := center.Create(body, category)
	if err != nil {
		return WeakHandle{}, err
	}
	if err := center.DispatchAfter(c, delay); err != nil {
		return WeakHandle{}, err
	}
	return c.Weak(), nil
}

// DispatchAndReply runs body on category, then reply on replyCategory.
func DispatchAndReply(body Task, category Category, reply Task, replyCategory Category) (WeakHandle, error) {
	center, err := current()
	if err != nil {
		return WeakHandle{}, err
	}
	return center.DispatchAndReply(body, category, reply, replyCategory)
}

// DispatchWithResult runs task on category and passes its result to reply on
// replyCategory.
func DispatchWithResult[T any](task TaskWithResult[T], category Category, reply ReplyWithResult[T], replyCategory Category) (WeakHandle, error) {
	center, err := current()
	if err != nil {
		return WeakHandle{}, err
	}
	return core.DispatchWithResult(center, task, category, reply, replyCategory)
}

// Chain makes dependent wait for prerequisite. Call it before dependent is dispatched.
func Chain(prerequisite, dependent *Counter) error {
	center, err := current()
	if err != nil {
		return err
	}
	return center.Chain(prerequisite, dependent)
}

// NewConsumer creates a Consumer on the default Center for categories,
// which defaults to the main-thread category.
func NewConsumer(categories ...Category) *Consumer {
	return core.NewConsumer(Default(), categories...)
}

// NewSequence creates a serial lane on the default Center.
func NewSequence(category Category) *Sequence {
	return core.NewSequence(Default(), category)
}

// NewFrameLoop starts a dedicated main-thread goroutine for the default Center.
func NewFrameLoop(opts ...FrameLoopOption) *FrameLoop {
	return core.NewFrameLoop(Default(), nil, opts...)
}

// Stats returns the default Center's observability snapshot.
func Stats() CenterStats {
	return Default().Stats()
}
