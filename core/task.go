package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Task is the body of a job (Closure). It runs exactly once.
type Task func(ctx context.Context)

// =============================================================================
// Category: Define which execution lane services a job
// =============================================================================

type Category int

const (
	// CategoryGeneric: Cheap, latency sensitive background work
	CategoryGeneric Category = iota

	// CategoryGenericSlow: Long running background work
	CategoryGenericSlow

	// CategoryMainThread: Work that must run on the goroutine owning a Consumer.
	// Background workers never service this category.
	CategoryMainThread

	// CategoryIO: Blocking IO work
	CategoryIO
)

// CategoryCount is the number of categories, and therefore of category queues.
const CategoryCount = 4

var categoryNames = [CategoryCount]string{
	CategoryGeneric:     "generic",
	CategoryGenericSlow: "generic-slow",
	CategoryMainThread:  "main-thread",
	CategoryIO:          "io",
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < CategoryCount
}

// Background reports whether c is serviced by background workers.
func (c Category) Background() bool {
	return c.Valid() && c != CategoryMainThread
}

// ParseCategory parses a category name as produced by Category.String.
// "slow" and "main" are accepted as short forms.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return CategoryGeneric, nil
	case "generic-slow", "slow":
		return CategoryGenericSlow, nil
	case "main-thread", "main":
		return CategoryMainThread, nil
	case "io":
		return CategoryIO, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// DefaultRoute is the category order serviced by a worker when no explicit
// route is configured: cheap work first, slow work next, IO last.
func DefaultRoute() []Category {
	return []Category{CategoryGeneric, CategoryGenericSlow, CategoryIO}
}

// =============================================================================
// JobID
// =============================================================================

// JobID identifies a Counter. IDs are process-wide unique and increase
// monotonically in creation order.
type JobID uint64

var lastJobID atomic.Uint64

// GenerateJobID returns the next job identifier.
func GenerateJobID() JobID {
	return JobID(lastJobID.Add(1))
}

func (id JobID) IsZero() bool {
	return id == 0
}

func (id JobID) String() string {
	return fmt.Sprintf("job-%d", uint64(id))
}

// =============================================================================
// Context Helper
// =============================================================================
type currentJobKeyType struct{}
type executorKeyType struct{}

var (
	currentJobKey currentJobKeyType
	executorKey   executorKeyType
)

// ConsumerExecutorID is reported by CurrentExecutor for jobs run by a Consumer.
const ConsumerExecutorID = -1

func withExecution(ctx context.Context, c *Counter, executor int) context.Context {
	ctx = context.WithValue(ctx, currentJobKey, c)
	return context.WithValue(ctx, executorKey, executor)
}

// CurrentJob returns the Counter being invoked in ctx, or nil when ctx does not
// come from a worker or Consumer execution.
func CurrentJob(ctx context.Context) *Counter {
	if v := ctx.Value(currentJobKey); v != nil {
		return v.(*Counter)
	}
	return nil
}

// Ready reports whether ctx belongs to an active job execution.
func Ready(ctx context.Context) bool {
	return CurrentJob(ctx) != nil
}

// CurrentExecutor returns the worker ID running the job in ctx.
// Jobs run by a Consumer report ConsumerExecutorID.
func CurrentExecutor(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(executorKey).(int)
	return v, ok
}
