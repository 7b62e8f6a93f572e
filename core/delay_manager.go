package core

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DelayedDispatch is a dispatched Counter whose self unit is released later.
type DelayedDispatch struct {
	RunAt   time.Time
	Counter *Counter
	index   int // for heap interface
}

// DelayedDispatchHeap implements heap.Interface
type DelayedDispatchHeap []*DelayedDispatch

func (h DelayedDispatchHeap) Len() int           { return len(h) }
func (h DelayedDispatchHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h DelayedDispatchHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *DelayedDispatchHeap) Push(x any) {
	n := len(*h)
	item := x.(*DelayedDispatch)
	item.index = n
	*h = append(*h, item)
}

func (h *DelayedDispatchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *DelayedDispatchHeap) Peek() *DelayedDispatch {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager releases delayed dispatches when their time comes. Its timer
// goroutine starts with the first Add.
type DelayManager struct {
	pq     DelayedDispatchHeap
	mu     sync.Mutex
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	started   atomic.Bool
}

func NewDelayManager() *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:     make(DelayedDispatchHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	heap.Init(&dm.pq)
	return dm
}

func (dm *DelayManager) Add(c *Counter, delay time.Duration) {
	dm.startOnce.Do(func() {
		dm.started.Store(true)
		go dm.loop()
	})

	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := &DelayedDispatch{
		RunAt:   time.Now().Add(delay),
		Counter: c,
	}
	heap.Push(&dm.pq, item)

	if item.index == 0 {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	defer close(dm.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		// Calculate next run time
		nextRun := dm.calculateNextRun()
		if nextRun < 0 {
			// Nothing scheduled, wait for a wakeup
			nextRun = 1000 * time.Hour
		}

		timer.Reset(nextRun)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.releaseExpired()
		case <-dm.wakeup:
			// New earliest item, need to recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// calculateNextRun returns the wait until the earliest item, 0 if it is
// already due, and -1 if nothing is scheduled.
func (dm *DelayManager) calculateNextRun() time.Duration {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return -1
	}

	now := time.Now()
	if !item.RunAt.After(now) {
		return 0
	}
	return item.RunAt.Sub(now)
}

// releaseExpired releases every due item outside the lock.
func (dm *DelayManager) releaseExpired() {
	dm.mu.Lock()

	now := time.Now()
	var expired []*DelayedDispatch

	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.RunAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		item.Counter.release()
	}
}

// Flush releases every pending item immediately, earliest first.
func (dm *DelayManager) Flush() int {
	dm.mu.Lock()
	items := make([]*DelayedDispatch, 0, dm.pq.Len())
	for dm.pq.Len() > 0 {
		items = append(items, heap.Pop(&dm.pq).(*DelayedDispatch))
	}
	dm.mu.Unlock()

	for _, item := range items {
		item.Counter.release()
	}
	return len(items)
}

// Stop terminates the timer loop and waits for it to exit.
// Items still pending are dropped; call Flush first to keep them.
func (dm *DelayManager) Stop() {
	dm.cancel()
	// A manager that never started has no loop to close done.
	dm.startOnce.Do(func() { close(dm.done) })
	<-dm.done

	dm.mu.Lock()
	dm.pq = make(DelayedDispatchHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()
}

// Running reports whether the timer goroutine was started.
func (dm *DelayManager) Running() bool {
	return dm.started.Load()
}

func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
