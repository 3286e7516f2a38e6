package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_ScheduleRunsHandle(t *testing.T) {
	p := New(WithDynamicWorkers())
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Schedule(ctx))
}

// TestPool_ShutdownFlushesInFlightWork schedules 1,000 handles each
// incrementing a shared counter, then shuts down. Shutdown must not return
// until the counter reads exactly 1,000, and scheduling after that must fail.
func TestPool_ShutdownFlushesInFlightWork(t *testing.T) {
	p := New(WithFixedWorkers(8))

	var counter atomic.Int64
	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, p.Resume(func() { counter.Add(1) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	require.Equal(t, int64(n), counter.Load())

	err := p.Resume(func() {})
	require.ErrorIs(t, err, ErrShutDown)
}

func TestPool_ResumeAllRunsEveryHandle(t *testing.T) {
	p := New(WithFixedWorkers(4))
	defer func() { _ = p.Shutdown(context.Background()) }()

	var counter atomic.Int64
	hs := make([]Handle, 20)
	for i := range hs {
		hs[i] = func() { counter.Add(1) }
	}
	require.NoError(t, p.ResumeAll(hs))

	require.Eventually(t, func() bool {
		return counter.Load() == int64(len(hs))
	}, time.Second, time.Millisecond)
}

func TestPool_ResumeRejectsNilHandle(t *testing.T) {
	p := New(WithDynamicWorkers())
	defer func() { _ = p.Shutdown(context.Background()) }()

	require.ErrorIs(t, p.Resume(nil), ErrNilHandle)
}

func TestPool_ScheduleAfterShutdownFails(t *testing.T) {
	p := New(WithDynamicWorkers())
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Schedule(context.Background())
	require.ErrorIs(t, err, ErrShutDown)
}

func TestPool_PanicInHandleDoesNotCrashWorker(t *testing.T) {
	p := New(WithFixedWorkers(2))
	defer func() { _ = p.Shutdown(context.Background()) }()

	require.NoError(t, p.Resume(func() { panic("boom") }))

	var ran atomic.Bool
	require.NoError(t, p.Resume(func() { ran.Store(true) }))

	require.Eventually(t, func() bool { return ran.Load() }, time.Second, time.Millisecond)
}

func TestPool_SingleWorkerBlocksSubsequentSchedule(t *testing.T) {
	p := New(WithFixedWorkers(1))
	defer func() { _ = p.Shutdown(context.Background()) }()

	block := make(chan struct{})
	require.NoError(t, p.Resume(func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Schedule(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

func TestGo_SchedulesBeforeRunning(t *testing.T) {
	p := New(WithDynamicWorkers())
	defer func() { _ = p.Shutdown(context.Background()) }()

	task := Go(p, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	v, err := task.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

// TestPool_SizeTracksInFlightCount asserts Size() reports the number of
// handles queued or running, not the (constant) worker count: it rises
// with each Resume and falls back to zero once every handle completes.
func TestPool_SizeTracksInFlightCount(t *testing.T) {
	p := New(WithFixedWorkers(1))
	defer func() { _ = p.Shutdown(context.Background()) }()

	require.Equal(t, int64(0), p.Size())

	block := make(chan struct{})
	require.NoError(t, p.Resume(func() { <-block }))
	require.NoError(t, p.Resume(func() { <-block }))

	require.Eventually(t, func() bool { return p.Size() == 2 }, time.Second, time.Millisecond)

	close(block)

	require.Eventually(t, func() bool { return p.Size() == 0 }, time.Second, time.Millisecond)
}
