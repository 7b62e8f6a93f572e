package jobcenter

import "github.com/Swind/go-job-center/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the jobcenter package for most use cases.

// Task is the body of a job (Closure)
type Task = core.Task

// Category routes a job to background workers or to a Consumer
type Category = core.Category

// Counter is the dependency node and completion handle of one job
type Counter = core.Counter

// WeakHandle observes a job without keeping it alive
type WeakHandle = core.WeakHandle

// Waitable is implemented by *Counter and WeakHandle
type Waitable = core.Waitable

// JobID identifies a job
type JobID = core.JobID

type (
	Center          = core.Center
	Config          = core.Config
	Consumer        = core.Consumer
	Sequence        = core.Sequence
	FrameLoop       = core.FrameLoop
	CenterStats     = core.CenterStats
	CounterOption   = core.CounterOption
	FrameLoopOption = core.FrameLoopOption
)

// Category constants
const (
	CategoryGeneric     = core.CategoryGeneric
	CategoryGenericSlow = core.CategoryGenericSlow
	CategoryMainThread  = core.CategoryMainThread
	CategoryIO          = core.CategoryIO
)

// Errors
var (
	ErrDependencyOverflow = core.ErrDependencyOverflow
	ErrIllegalChainOrder  = core.ErrIllegalChainOrder
	ErrAlreadyDispatched  = core.ErrAlreadyDispatched
	ErrLifecycleMisuse    = core.ErrLifecycleMisuse
	ErrInvalidCategory    = core.ErrInvalidCategory
	ErrNilBody            = core.ErrNilBody
)

var (
	WithName      = core.WithName
	DefaultConfig = core.DefaultConfig
	NewCenter     = core.NewCenter
)

// TaskWithResult and ReplyWithResult for the generic DispatchWithResult pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// CurrentJob returns the job executing in ctx, or nil
var CurrentJob = core.CurrentJob

// Ready reports whether ctx belongs to an active job execution
var Ready = core.Ready

// Wait blocks until w is done. There is no timeout.
var Wait = core.Wait
