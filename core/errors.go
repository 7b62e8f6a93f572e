package core

import "errors"

var (
	// ErrDependencyOverflow: more than MaxBlockees dependents chained onto one Counter.
	ErrDependencyOverflow = errors.New("dependency overflow")

	// ErrIllegalChainOrder: Chain called on a dependent that was already dispatched,
	// or a Counter chained onto itself.
	ErrIllegalChainOrder = errors.New("illegal chain order")

	// ErrAlreadyDispatched: Dispatch called twice for the same Counter.
	ErrAlreadyDispatched = errors.New("counter already dispatched")

	// ErrLifecycleMisuse: double Startup/Shutdown, or work submitted after Shutdown began.
	ErrLifecycleMisuse = errors.New("center lifecycle misuse")

	ErrInvalidCategory = errors.New("invalid category")
	ErrNilBody         = errors.New("nil job body")
	ErrNilCounter      = errors.New("nil counter")

	// ErrForeignCounter: a Counter used with a Center other than the one that created it.
	ErrForeignCounter = errors.New("counter belongs to another center")

	ErrInvalidConfig = errors.New("invalid center config")

	ErrFrameLoopClosed = errors.New("frame loop is closed")

	// ErrUnreachableJobs: Shutdown found dispatched jobs whose prerequisites were never dispatched.
	ErrUnreachableJobs = errors.New("unreachable jobs")
)
