package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumer_Defaults(t *testing.T) {
	center := newTestCenter(t, 0)

	c := NewConsumer(center)
	assert.Equal(t, []Category{CategoryMainThread}, c.Categories())

	assert.Panics(t, func() { NewConsumer(center, Category(-1)) })
	assert.Panics(t, func() { NewConsumer(nil) })
}

// TestConsumer_Consume verifies single-job consumption
// Given: Two queued main-thread jobs
// When: Consume is called three times
// Then: It runs one job per call and reports false once empty
func TestConsumer_Consume(t *testing.T) {
	center := newTestCenter(t, 0)
	consumer := NewConsumer(center)

	var ran atomic.Int32
	for range 2 {
		_, err := center.DispatchBody(func(context.Context) { ran.Add(1) }, CategoryMainThread)
		require.NoError(t, err)
	}

	assert.True(t, consumer.Consume())
	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, consumer.Consume())
	assert.False(t, consumer.Consume())
	assert.Equal(t, int32(2), ran.Load())
}

// TestConsumer_Isolation verifies a consumer only runs its own categories
func TestConsumer_Isolation(t *testing.T) {
	center := newTestCenter(t, 0)

	io, _ := center.DispatchBody(noop, CategoryIO)
	ui, _ := center.DispatchBody(noop, CategoryMainThread)

	assert.Equal(t, 1, NewConsumer(center, CategoryIO).ConsumeAll())
	assert.True(t, io.Done())
	assert.False(t, ui.Done())
	assert.Equal(t, 1, center.QueuedJobCount(CategoryMainThread))
}

// TestConsumer_ConsumeAllFollowsCascade verifies jobs released while consuming are picked up
func TestConsumer_ConsumeAllFollowsCascade(t *testing.T) {
	center := newTestCenter(t, 0)

	var order []int
	var prev *Counter
	for i := range 5 {
		c, err := center.Create(func(context.Context) { order = append(order, i) }, CategoryMainThread)
		require.NoError(t, err)
		if prev != nil {
			require.NoError(t, center.Chain(prev, c))
		}
		require.NoError(t, center.Dispatch(c))
		prev = c
	}

	assert.Equal(t, 5, NewConsumer(center).ConsumeAll())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

// TestConsumer_ConsumeFor verifies the time budget
// Given: A backlog of 50 jobs that take 2ms each
// When: ConsumeFor runs with a 10ms budget
// Then: It stops early and leaves the rest queued
func TestConsumer_ConsumeFor(t *testing.T) {
	center := newTestCenter(t, 0)
	consumer := NewConsumer(center)

	for range 50 {
		_, err := center.DispatchBody(func(context.Context) { time.Sleep(2 * time.Millisecond) }, CategoryMainThread)
		require.NoError(t, err)
	}

	start := time.Now()
	n := consumer.ConsumeFor(10 * time.Millisecond)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, n, 1)
	assert.Less(t, n, 50)
	assert.Equal(t, 50-n, center.QueuedJobCount(CategoryMainThread))
	// Overrun is bounded by one job body.
	assert.Less(t, elapsed, 10*time.Millisecond+50*time.Millisecond)

	assert.Equal(t, 0, consumer.ConsumeFor(0))
}

func TestConsumer_WithContext(t *testing.T) {
	center := newTestCenter(t, 0)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "frame")

	var got atomic.Value
	_, err := center.DispatchBody(func(ctx context.Context) { got.Store(ctx.Value(key{})) }, CategoryMainThread)
	require.NoError(t, err)

	NewConsumer(center).WithContext(ctx).ConsumeAll()
	assert.Equal(t, "frame", got.Load())
}
