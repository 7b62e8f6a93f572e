package jobcenter_test

import (
	"context"
	"fmt"

	jobcenter "github.com/Swind/go-job-center"
)

// ExampleDispatch demonstrates fire-and-forget usage with only one import.
func ExampleDispatch() {
	jobcenter.Startup(2)
	defer jobcenter.Shutdown(context.Background())

	h, _ := jobcenter.Dispatch(func(ctx context.Context) {
		fmt.Println("Job 1")
	}, jobcenter.CategoryGeneric)

	jobcenter.Wait(h)

	// Output:
	// Job 1
}

// ExampleChain demonstrates a fan-in graph finishing on the main thread.
func ExampleChain() {
	jobcenter.Startup(2)
	defer jobcenter.Shutdown(context.Background())

	results := make([]int, 3)
	var parts []*jobcenter.Counter
	for i := range results {
		part, _ := jobcenter.Create(func(ctx context.Context) {
			results[i] = (i + 1) * 10
		}, jobcenter.CategoryGeneric)
		parts = append(parts, part)
	}

	sum, _ := jobcenter.Create(func(ctx context.Context) {
		fmt.Println("Sum:", results[0]+results[1]+results[2])
	}, jobcenter.CategoryMainThread)

	for _, part := range parts {
		jobcenter.Chain(part, sum)
	}
	jobcenter.DispatchCounter(sum)
	for _, part := range parts {
		jobcenter.DispatchCounter(part)
	}

	mainThread := jobcenter.NewConsumer()
	for !sum.Done() {
		mainThread.Consume()
	}

	// Output:
	// Sum: 60
}

// ExampleNewSequence demonstrates a serial lane on a multi-worker center.
func ExampleNewSequence() {
	jobcenter.Startup(4)
	defer jobcenter.Shutdown(context.Background())

	seq := jobcenter.NewSequence(jobcenter.CategoryGeneric)
	for i := 1; i <= 3; i++ {
		seq.Post(func(ctx context.Context) {
			fmt.Println("Step", i)
		})
	}
	seq.Wait()

	// Output:
	// Step 1
	// Step 2
	// Step 3
}
