package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultFrameBudget   = 4 * time.Millisecond
)

// FrameLoop binds a dedicated goroutine, locked to its OS thread, that acts
// as the main thread of a Center. Once per frame it pumps a Consumer for at
// most the frame budget, so main-thread jobs share the frame with whatever
// the frame hook does.
//
// All main-thread jobs of the Center run on the FrameLoop goroutine. To keep
// that true during shutdown, use FrameLoop.Shutdown rather than calling
// Center.Shutdown directly.
type FrameLoop struct {
	center   *Center
	consumer *Consumer
	interval time.Duration
	budget   time.Duration
	onFrame  func(frame uint64, consumed int)

	frames atomic.Uint64

	// Lifecycle control
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	once     sync.Once
	closed   atomic.Bool
	shutdown chan shutdownRequest
}

type shutdownRequest struct {
	ctx  context.Context
	errc chan error
}

// FrameLoopOption configures a FrameLoop.
type FrameLoopOption func(*FrameLoop)

// WithFrameInterval sets the time between frame starts.
func WithFrameInterval(d time.Duration) FrameLoopOption {
	return func(l *FrameLoop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithFrameBudget caps how long a frame spends consuming jobs.
func WithFrameBudget(d time.Duration) FrameLoopOption {
	return func(l *FrameLoop) {
		if d > 0 {
			l.budget = d
		}
	}
}

// WithFrameHook runs fn at the end of every frame on the frame goroutine.
func WithFrameHook(fn func(frame uint64, consumed int)) FrameLoopOption {
	return func(l *FrameLoop) {
		l.onFrame = fn
	}
}

// WithFrameContext sets the parent of the context passed to job bodies run
// by the loop, including those drained by Shutdown. Cancelling parent stops
// the loop as Stop does.
func WithFrameContext(parent context.Context) FrameLoopOption {
	return func(l *FrameLoop) {
		if parent != nil {
			l.parent = parent
		}
	}
}

// NewFrameLoop creates and starts a FrameLoop consuming categories, which
// defaults to CategoryMainThread.
func NewFrameLoop(center *Center, categories []Category, opts ...FrameLoopOption) *FrameLoop {
	l := &FrameLoop{
		center:   center,
		interval: DefaultFrameInterval,
		budget:   DefaultFrameBudget,
		parent:   context.Background(),
		stopped:  make(chan struct{}),
		shutdown: make(chan shutdownRequest),
	}
	for _, opt := range opts {
		opt(l)
	}
	ctx, cancel := context.WithCancel(l.parent)
	l.ctx, l.cancel = ctx, cancel
	l.consumer = NewConsumer(center, categories...).WithContext(ctx)

	go l.runLoop()
	return l
}

// Frames returns the number of completed frames.
func (l *FrameLoop) Frames() uint64 {
	return l.frames.Load()
}

// IsClosed returns true if the loop has been stopped
func (l *FrameLoop) IsClosed() bool {
	return l.closed.Load()
}

// Stop ends the loop after a final ConsumeAll and waits for the goroutine
// to exit. The Center keeps running.
func (l *FrameLoop) Stop() {
	l.once.Do(func() {
		l.closed.Store(true)
		l.cancel()
	})
	<-l.stopped
}

// Shutdown shuts the Center down from the frame goroutine, so main-thread
// jobs dispatched while draining still run there, then stops the loop.
// If the loop has already stopped, the Center is shut down on the caller.
func (l *FrameLoop) Shutdown(ctx context.Context) error {
	req := shutdownRequest{ctx: ctx, errc: make(chan error, 1)}
	select {
	case l.shutdown <- req:
		err := <-req.errc
		l.Stop()
		return err
	case <-l.stopped:
		return l.center.Shutdown(ctx)
	}
}

// runLoop is the core of the frame loop, it occupies a dedicated goroutine
func (l *FrameLoop) runLoop() {
	defer close(l.stopped)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.frame()

		case req := <-l.shutdown:
			req.errc <- l.center.shutdown(req.ctx, l.ctx)
			l.closed.Store(true)
			return

		case <-l.ctx.Done():
			l.consumer.ConsumeAll()
			l.closed.Store(true)
			return
		}
	}
}

func (l *FrameLoop) frame() {
	n := l.consumer.ConsumeFor(l.budget)
	frame := l.frames.Add(1)
	if l.onFrame != nil {
		l.onFrame(frame, n)
	}
}

// WaitIdle blocks until every main-thread job dispatched before the call has
// run. It dispatches a barrier job and waits for it.
//
// Jobs whose prerequisites are still pending are not waited for.
func (l *FrameLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return ErrFrameLoopClosed
	}

	done, err := l.center.DispatchBody(func(context.Context) {}, CategoryMainThread, WithName("frame-barrier"))
	if err != nil {
		return err
	}

	select {
	case <-done.Completed():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
