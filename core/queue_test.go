package core

import (
	"runtime"
	"sync"
	"testing"
)

func queuedCounter(category Category) *Counter {
	return newCounter(nil, noop, category)
}

// TestCategoryQueue_FIFO verifies first-in-first-out behavior
// Given: A queue with 3 jobs
// When: Jobs are popped from the queue
// Then: Jobs come out in insertion order
func TestCategoryQueue_FIFO(t *testing.T) {
	// Arrange
	q := NewCategoryQueue(CategoryGeneric)
	jobs := []*Counter{queuedCounter(CategoryGeneric), queuedCounter(CategoryGeneric), queuedCounter(CategoryGeneric)}

	// Act
	for _, c := range jobs {
		q.Push(c)
	}

	// Assert
	if q.Len() != 3 {
		t.Fatalf("q.Len() = %d, want 3", q.Len())
	}
	for i, want := range jobs {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Step %d: queue is empty", i)
		}
		if got != want {
			t.Errorf("Step %d: popped %s, want %s", i, got.ID(), want.ID())
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue = true, want false")
	}
	if !q.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
}

// TestCategoryQueue_MaybeCompact verifies memory compaction functionality
// Given: A queue that has been emptied after containing 200 jobs
// When: MaybeCompact is called
// Then: Capacity shrinks and the queue remains functional
func TestCategoryQueue_MaybeCompact(t *testing.T) {
	// Arrange
	q := NewCategoryQueue(CategoryIO)
	for range 200 {
		q.Push(queuedCounter(CategoryIO))
	}
	for range 200 {
		q.Pop()
	}

	// Act
	q.MaybeCompact()
	last := queuedCounter(CategoryIO)
	q.Push(last)

	// Assert
	if c := cap(q.jobs); c > compactMinCap {
		t.Errorf("cap after compaction = %d, want <= %d", c, compactMinCap)
	}
	got, ok := q.Pop()
	if !ok || got != last {
		t.Fatalf("Pop() after MaybeCompact = %v, %v; want %s", got, ok, last.ID())
	}
}

// TestCategoryQueue_Clear verifies Clear hands back every queued job
func TestCategoryQueue_Clear(t *testing.T) {
	q := NewCategoryQueue(CategoryMainThread)
	a, b := queuedCounter(CategoryMainThread), queuedCounter(CategoryMainThread)
	q.Push(a)
	q.Push(b)

	cleared := q.Clear()

	if len(cleared) != 2 || cleared[0] != a || cleared[1] != b {
		t.Fatalf("Clear() = %v, want [%s %s]", cleared, a.ID(), b.ID())
	}
	if q.Len() != 0 {
		t.Errorf("q.Len() after Clear = %d, want 0", q.Len())
	}
	if q.Category() != CategoryMainThread {
		t.Errorf("Category() = %s, want %s", q.Category(), CategoryMainThread)
	}
}

// TestCategoryQueue_ConcurrentPushPop verifies every pushed job is popped once
func TestCategoryQueue_ConcurrentPushPop(t *testing.T) {
	q := NewCategoryQueue(CategoryGeneric)
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.Push(queuedCounter(CategoryGeneric))
			}
		}()
	}

	seen := make(map[JobID]bool)
	var mu sync.Mutex
	done := make(chan struct{})
	var consumers sync.WaitGroup
	for range 4 {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				c, ok := q.Pop()
				if !ok {
					select {
					case <-done:
						return
					default:
						continue
					}
				}
				mu.Lock()
				if seen[c.ID()] {
					t.Errorf("job %s popped twice", c.ID())
				}
				seen[c.ID()] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	for !q.IsEmpty() {
		runtime.Gosched()
	}
	close(done)
	consumers.Wait()

	if len(seen) != producers*perProducer {
		t.Errorf("popped %d jobs, want %d", len(seen), producers*perProducer)
	}
}
