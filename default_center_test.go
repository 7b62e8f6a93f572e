package jobcenter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-job-center/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDefault(t *testing.T, workers int) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Name = t.Name()
	cfg.WorkerCount = workers
	cfg.Logger = core.NewNoOpLogger()
	require.NoError(t, StartupWithConfig(cfg))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = Shutdown(ctx)
	})
}

// TestDefaultCenter_Lifecycle verifies the singleton lifecycle
// Given: No default center
// When: Helpers are used before Startup, after Startup and after Shutdown
// Then: They fail with ErrLifecycleMisuse only when no center runs
func TestDefaultCenter_Lifecycle(t *testing.T) {
	_, err := Dispatch(func(context.Context) {}, CategoryGeneric)
	require.ErrorIs(t, err, ErrLifecycleMisuse)
	assert.Panics(t, func() { Default() })

	require.NoError(t, Startup(2))
	assert.ErrorIs(t, Startup(2), ErrLifecycleMisuse)
	assert.Equal(t, "default", Default().Name())
	assert.Equal(t, 2, Stats().Workers)

	require.NoError(t, Shutdown(context.Background()))
	assert.ErrorIs(t, Shutdown(context.Background()), ErrLifecycleMisuse)

	// Startup may be called again after Shutdown
	require.NoError(t, Startup(1))
	require.NoError(t, Shutdown(context.Background()))
}

func TestDispatch(t *testing.T) {
	startDefault(t, 2)

	var ran atomic.Bool
	h, err := Dispatch(func(ctx context.Context) {
		ran.Store(Ready(ctx) && CurrentJob(ctx) != nil)
	}, CategoryGeneric)
	require.NoError(t, err)

	Wait(h)
	assert.True(t, ran.Load())
}

// TestChainAndDispatchCounter verifies the façade graph helpers
func TestChainAndDispatchCounter(t *testing.T) {
	startDefault(t, 2)

	var order []string
	first, err := Create(func(context.Context) { order = append(order, "first") }, CategoryIO)
	require.NoError(t, err)
	second, err := Create(func(context.Context) { order = append(order, "second") }, CategoryGeneric)
	require.NoError(t, err)

	require.NoError(t, Chain(first, second))
	require.NoError(t, DispatchCounter(second))
	require.NoError(t, DispatchCounter(first))

	Wait(second)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.ErrorIs(t, DispatchCounter(second), ErrAlreadyDispatched)
}

func TestDispatchAfter(t *testing.T) {
	startDefault(t, 1)

	start := time.Now()
	h, err := DispatchAfter(func(context.Context) {}, CategoryGeneric, 20*time.Millisecond)
	require.NoError(t, err)

	Wait(h)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

// TestDispatchAndReply_MainThread verifies a reply lands on the main-thread consumer
func TestDispatchAndReply_MainThread(t *testing.T) {
	startDefault(t, 2)
	mainThread := NewConsumer()

	var result atomic.Int32
	h, err := DispatchWithResult(
		func(context.Context) (int32, error) { return 7, nil }, CategoryIO,
		func(_ context.Context, v int32, err error) {
			if err == nil {
				result.Store(v)
			}
		}, CategoryMainThread,
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mainThread.ConsumeAll()
		return h.Done()
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, int32(7), result.Load())

	var replied atomic.Bool
	h, err = DispatchAndReply(func(context.Context) {}, CategoryGeneric, func(context.Context) { replied.Store(true) }, CategoryGeneric)
	require.NoError(t, err)
	Wait(h)
	assert.True(t, replied.Load())
}

func TestNewSequence(t *testing.T) {
	startDefault(t, 4)
	seq := NewSequence(CategoryGeneric)

	var order []int
	for i := range 20 {
		_, err := seq.Post(func(context.Context) { order = append(order, i) })
		require.NoError(t, err)
	}
	seq.Wait()

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestNewFrameLoop(t *testing.T) {
	startDefault(t, 1)
	loop := NewFrameLoop(core.WithFrameInterval(time.Millisecond))
	defer loop.Stop()

	h, err := Dispatch(func(context.Context) {}, CategoryMainThread)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.WaitIdle(ctx))
	assert.True(t, h.Done())
}
