package core

import "context"

// TaskWithResult is a job body that produces a value.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// DispatchAndReply runs task on taskCategory, then reply on replyCategory.
// The reply is chained after the task, so it observes everything the task
// wrote. If the task panics, the reply body is skipped; the returned handle
// still completes.
func (s *Center) DispatchAndReply(task Task, taskCategory Category, reply Task, replyCategory Category) (WeakHandle, error) {
	if task == nil || reply == nil {
		return WeakHandle{}, ErrNilBody
	}

	taskJob, err := s.Create(task, taskCategory)
	if err != nil {
		return WeakHandle{}, err
	}

	replyJob, err := s.Create(func(ctx context.Context) {
		if taskJob.Panicked() {
			return
		}
		reply(ctx)
	}, replyCategory, WithName(resolveJobName(reply, "")))
	if err != nil {
		return WeakHandle{}, err
	}

	if err := s.Chain(taskJob, replyJob); err != nil {
		return WeakHandle{}, err
	}
	if err := s.Dispatch(taskJob); err != nil {
		return WeakHandle{}, err
	}
	// Still pending on the task, so this cannot run before it.
	if err := s.Dispatch(replyJob); err != nil {
		return WeakHandle{}, err
	}
	return replyJob.Weak(), nil
}

// DispatchWithResult runs task on taskCategory and hands its result to reply
// on replyCategory.
//
// Example:
//
//	core.DispatchWithResult(center,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    }, core.CategoryIO,
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    }, core.CategoryMainThread,
//	)
func DispatchWithResult[T any](
	center *Center,
	task TaskWithResult[T],
	taskCategory Category,
	reply ReplyWithResult[T],
	replyCategory Category,
) (WeakHandle, error) {
	if task == nil || reply == nil {
		return WeakHandle{}, ErrNilBody
	}

	// Written by the task, read by the reply after the chain edge.
	var result T
	var err error

	return center.DispatchAndReply(
		func(ctx context.Context) {
			result, err = task(ctx)
		}, taskCategory,
		func(ctx context.Context) {
			reply(ctx, result, err)
		}, replyCategory,
	)
}
