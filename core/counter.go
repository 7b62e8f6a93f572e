package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"
)

// MaxBlockees is the hard cap on dependents chained onto a single Counter.
const MaxBlockees = 1024

const initialBlockeeCap = 4

// The pending word holds the outstanding unit count in its low bits and the
// dispatched flag in dispatchedBit, so Chain and Dispatch race on one atomic.
const (
	dispatchedBit int32 = 1 << 30
	pendingMask         = dispatchedBit - 1
)

// closedChan is returned by Completed on zero handles.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// completion is the part of a Counter that outlives it, so a WeakHandle can
// observe completion after the Counter itself was collected.
type completion struct {
	done     atomic.Bool
	panicked atomic.Bool
	ch       chan struct{}
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

func (c *completion) finish(panicked bool) {
	c.panicked.Store(panicked)
	c.done.Store(true)
	close(c.ch)
}

// Counter is the dependency-graph node and completion handle of one job.
//
// A Counter starts with one pending unit that belongs to the job itself and
// is released by Dispatch. Every prerequisite chained onto it adds one more
// unit, released when that prerequisite completes. The body is queued on its
// category exactly once, by whichever release brings the count to zero.
// Once dispatched, no further prerequisite can be added.
type Counter struct {
	id       JobID
	name     string
	category Category
	center   *Center

	// body is cleared once invoked so the closure can be collected.
	body Task

	pending atomic.Int32

	// mu guards blockees and sealed. It is also the publication barrier
	// between Chain and dispatchBlockees.
	mu       sync.Mutex
	blockees []*Counter
	sealed   bool

	completion *completion
}

// CounterOption configures a Counter at creation.
type CounterOption func(*Counter)

// WithName sets the display name used in logs, history and spans.
func WithName(name string) CounterOption {
	return func(c *Counter) {
		c.name = name
	}
}

func newCounter(center *Center, body Task, category Category, opts ...CounterOption) *Counter {
	c := &Counter{
		id:         GenerateJobID(),
		category:   category,
		center:     center,
		body:       body,
		completion: newCompletion(),
	}
	c.pending.Store(1)
	for _, opt := range opts {
		opt(c)
	}
	c.name = resolveJobName(body, c.name)
	return c
}

func (c *Counter) ID() JobID           { return c.id }
func (c *Counter) Name() string        { return c.name }
func (c *Counter) Category() Category  { return c.category }
func (c *Counter) Dispatched() bool    { return c.pending.Load()&dispatchedBit != 0 }
func (c *Counter) Done() bool          { return c.completion.done.Load() }
func (c *Counter) Panicked() bool      { return c.completion.panicked.Load() }
func (c *Counter) PendingCount() int32 { return c.pending.Load() & pendingMask }

// Ready reports whether every pending unit was released, meaning the job was
// made visible to its category queue.
func (c *Counter) Ready() bool {
	return c.pending.Load() == dispatchedBit
}

// Completed returns a channel closed once the job is done.
func (c *Counter) Completed() <-chan struct{} {
	return c.completion.ch
}

// Wait blocks until the job is done. There is no timeout.
func (c *Counter) Wait() {
	<-c.completion.ch
}

// Weak returns a non-owning handle to c.
func (c *Counter) Weak() WeakHandle {
	return WeakHandle{
		ptr:        weak.Make(c),
		id:         c.id,
		completion: c.completion,
	}
}

func (c *Counter) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.id, c.name, c.category)
}

// chain registers dependent as a blockee of c. It fails with
// ErrIllegalChainOrder if dependent is dispatched, even concurrently.
func (c *Counter) chain(dependent *Counter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dependent.Dispatched() {
		return fmt.Errorf("%w: %s was already dispatched", ErrIllegalChainOrder, dependent.id)
	}
	if c.sealed {
		// c already completed; the edge is satisfied.
		return nil
	}
	if len(c.blockees) >= MaxBlockees {
		return fmt.Errorf("%w: %s already has %d dependents", ErrDependencyOverflow, c.id, MaxBlockees)
	}
	if c.blockees == nil {
		c.blockees = make([]*Counter, 0, initialBlockeeCap)
	}

	// The unit must be counted before dispatchBlockees can observe the edge.
	if !dependent.addPending() {
		return fmt.Errorf("%w: %s was already dispatched", ErrIllegalChainOrder, dependent.id)
	}
	c.blockees = append(c.blockees, dependent)
	return nil
}

// addPending counts one more prerequisite unless c is already dispatched.
func (c *Counter) addPending() bool {
	for {
		old := c.pending.Load()
		if old&dispatchedBit != 0 {
			return false
		}
		if c.pending.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// markDispatched sets the dispatched flag. It returns false if it was set.
func (c *Counter) markDispatched() bool {
	for {
		old := c.pending.Load()
		if old&dispatchedBit != 0 {
			return false
		}
		if c.pending.CompareAndSwap(old, old|dispatchedBit) {
			return true
		}
	}
}

// release drops one pending unit and enqueues the job when none remain.
func (c *Counter) release() {
	n := c.pending.Add(-1) & pendingMask
	switch {
	case n == 0:
		c.center.unpark(c)
		c.center.enqueue(c)
	case n == pendingMask:
		panic(fmt.Sprintf("%s: pending dependencies dropped below zero", c.id))
	}
}

// invoke runs the body, publishes completion, then cascades to blockees.
// It is called by exactly one worker or Consumer.
func (c *Counter) invoke(ctx context.Context, executor int) {
	body := c.body
	c.body = nil

	panicked := c.center.execute(ctx, c, body, executor)

	c.completion.finish(panicked)
	c.dispatchBlockees()
	c.center.finish()
}

func (c *Counter) dispatchBlockees() {
	c.mu.Lock()
	c.sealed = true
	blockees := c.blockees
	c.blockees = nil
	c.mu.Unlock()

	for _, b := range blockees {
		b.release()
	}
}

// =============================================================================
// WeakHandle
// =============================================================================

// WeakHandle is a non-owning reference to a Counter. It can be polled and
// waited on without keeping the Counter alive. The zero WeakHandle reports done.
type WeakHandle struct {
	ptr        weak.Pointer[Counter]
	id         JobID
	completion *completion
}

func (h WeakHandle) ID() JobID { return h.id }

// Counter returns the referenced Counter, or nil once it has been collected.
func (h WeakHandle) Counter() *Counter {
	return h.ptr.Value()
}

func (h WeakHandle) Done() bool {
	return h.completion == nil || h.completion.done.Load()
}

func (h WeakHandle) Panicked() bool {
	return h.completion != nil && h.completion.panicked.Load()
}

func (h WeakHandle) Completed() <-chan struct{} {
	if h.completion == nil {
		return closedChan
	}
	return h.completion.ch
}

// Wait blocks until the job is done. There is no timeout.
func (h WeakHandle) Wait() {
	<-h.Completed()
}

// Waitable is implemented by *Counter and WeakHandle.
type Waitable interface {
	Completed() <-chan struct{}
}

// Wait blocks until w is done.
func Wait(w Waitable) {
	<-w.Completed()
}
