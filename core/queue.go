package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// CategoryQueue is the FIFO of ready jobs for one category.
// Push and Pop are safe for concurrent use; a popped job is owned by the
// caller that popped it.
type CategoryQueue struct {
	category Category

	mu   sync.Mutex
	jobs []*Counter
}

func NewCategoryQueue(category Category) *CategoryQueue {
	return &CategoryQueue{
		category: category,
		jobs:     make([]*Counter, 0, defaultQueueCap),
	}
}

func (q *CategoryQueue) Category() Category {
	return q.category
}

func (q *CategoryQueue) Push(c *Counter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, c)
}

func (q *CategoryQueue) Pop() (*Counter, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	c := q.jobs[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return c, true
}

func (q *CategoryQueue) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *CategoryQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]*Counter, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*Counter, n, newCap)
	copy(newSlice, q.jobs)
	q.jobs = newSlice
}

func (q *CategoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *CategoryQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes every queued job and returns them in FIFO order.
func (q *CategoryQueue) Clear() []*Counter {
	q.mu.Lock()
	defer q.mu.Unlock()
	abandoned := q.jobs
	q.jobs = make([]*Counter, 0, defaultQueueCap)
	return abandoned
}
