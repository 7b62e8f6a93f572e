//go:build !ci

// This test file contains a scalable version of concurrent delayed dispatch
// that adjusts job count based on available CPUs.
// It is excluded from CI builds to ensure CI stability.

package core_test

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-job-center/core"
)

// TestDelayManager_ConcurrentAdd_Scalable verifies thread safety with CPU-adjusted job count
// This test is excluded from CI (!ci build tag)
// Given: A running center and multiple goroutines dispatching delayed jobs
// When: goroutines concurrently call DispatchAfter (count scaled by CPU count)
// Then: All jobs execute and Shutdown finds nothing outstanding
func TestDelayManager_ConcurrentAdd_Scalable(t *testing.T) {
	// Arrange
	workers := 4
	center := startCenter(t, workers)

	numCPUs := runtime.NumCPU()
	numJobs := workers * 20
	if numCPUs >= 8 {
		numJobs = workers * 30
	}
	if numCPUs >= 16 {
		numJobs = workers * 40
	}

	var wg sync.WaitGroup
	var executed atomic.Int32

	t.Logf("Scalable test with %d jobs (CPUs: %d, Workers: %d)", numJobs, numCPUs, workers)

	// Act - Concurrently dispatch jobs with different delays
	for i := range numJobs {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c, err := center.Create(func(ctx context.Context) {
				executed.Add(1)
			}, core.CategoryGeneric)
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			delay := time.Duration(id%10)*10*time.Millisecond + 50*time.Millisecond
			if err := center.DispatchAfter(c, delay); err != nil {
				t.Errorf("DispatchAfter() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := center.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	// Assert
	if count := executed.Load(); count != int32(numJobs) {
		t.Errorf("executed jobs = %d, want %d (CPUs: %d)", count, numJobs, numCPUs)
	}
}
