// Package jobcenter provides a dependency-aware job graph executed by a fixed
// pool of worker goroutines plus caller-pumped Consumers.
//
// Work is described as jobs. Each job is a body wrapped in a Counter, which is
// both its node in the dependency graph and its completion handle. A job is
// routed by its Category: generic, generic-slow and IO jobs run on background
// workers, main-thread jobs only run inside a Consumer on the goroutine that
// owns it.
//
// # Quick Start
//
// Start the default Center at application startup:
//
//	jobcenter.Startup(4) // 4 workers
//	defer jobcenter.Shutdown(context.Background())
//
// Fire and forget:
//
//	h, _ := jobcenter.Dispatch(func(ctx context.Context) {
//		// background work
//	}, jobcenter.CategoryGeneric)
//	jobcenter.Wait(h)
//
// # Dependencies
//
// Chain makes a dependent wait for a prerequisite. Chaining must happen
// before the dependent is dispatched; the dependent becomes ready once its
// own Dispatch and every prerequisite have completed, in any order.
//
//	load, _ := jobcenter.Create(loadTexture, jobcenter.CategoryIO)
//	decode, _ := jobcenter.Create(decodeTexture, jobcenter.CategoryGenericSlow)
//	upload, _ := jobcenter.Create(uploadTexture, jobcenter.CategoryMainThread)
//
//	jobcenter.Chain(load, decode)
//	jobcenter.Chain(decode, upload)
//	for _, c := range []*jobcenter.Counter{upload, decode, load} {
//		jobcenter.DispatchCounter(c)
//	}
//
//	// On the main goroutine, once per frame:
//	mainThread.ConsumeFor(4 * time.Millisecond)
//
// A job that panics is reported to the PanicHandler and still completes, so
// its dependents and waiters are never stranded.
//
// # Shutdown
//
// Shutdown stops accepting dispatches and drains everything already
// dispatched. Main-thread jobs still queued run on the goroutine calling
// Shutdown.
package jobcenter
