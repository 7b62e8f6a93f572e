package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	WorkerCreated WorkerState = iota
	WorkerRunning
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerCreated:
		return "created"
	case WorkerRunning:
		return "running"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is one background executor. It claims jobs from the categories in
// its route, in order, and runs them until joined.
type Worker struct {
	id     int
	center *Center
	route  []Category

	state atomic.Int32

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

func newWorker(parent context.Context, id int, center *Center, route []Category) *Worker {
	ctx, cancel := context.WithCancel(parent)
	return &Worker{
		id:     id,
		center: center,
		route:  route,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Route() []Category {
	return append([]Category(nil), w.route...)
}

func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *Worker) start() {
	if !w.state.CompareAndSwap(int32(WorkerCreated), int32(WorkerRunning)) {
		return
	}
	go w.loop()
}

// loop is the main loop of each worker
func (w *Worker) loop() {
	defer close(w.done)
	defer w.state.Store(int32(WorkerStopped))

	stop := w.ctx.Done()
	attempt := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		if c, ok := w.center.claim(w.route); ok {
			attempt = 0
			c.invoke(w.ctx, w.id)
			continue
		}

		if !w.center.waitForWork(stop, attempt) {
			return
		}
		attempt++
	}
}

// join stops the worker after its current job and waits for it to exit.
// Queued jobs are left in place.
func (w *Worker) join() {
	w.stopOnce.Do(w.cancel)
	if w.state.CompareAndSwap(int32(WorkerCreated), int32(WorkerStopped)) {
		return
	}
	<-w.done
}

// detach stops the worker after its current job without waiting for it.
func (w *Worker) detach() {
	w.stopOnce.Do(w.cancel)
	w.state.CompareAndSwap(int32(WorkerCreated), int32(WorkerStopped))
}
