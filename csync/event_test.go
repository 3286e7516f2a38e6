package csync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvent_AwaitBlocksUntilSet(t *testing.T) {
	e := NewEvent()
	require.False(t, e.IsSet())

	var woke atomic.Bool
	done := make(chan struct{})
	go func() {
		_ = e.Await(context.Background())
		woke.Store(true)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.False(t, woke.Load())

	e.Set()
	<-done
	require.True(t, woke.Load())
	require.True(t, e.IsSet())
}

func TestEvent_AwaitOnAlreadySetReturnsImmediately(t *testing.T) {
	e := NewEvent()
	e.Set()
	require.NoError(t, e.Await(context.Background()))
}

func TestEvent_SetWakesAllWaiters(t *testing.T) {
	e := NewEvent()
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = e.Await(context.Background())
		}()
	}
	time.Sleep(10 * time.Millisecond)
	e.Set()

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("not all waiters woke")
	}
}

func TestEvent_AwaitContextCanceled(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Await(ctx), context.Canceled)
}

func TestEvent_ResetAllowsReuse(t *testing.T) {
	e := NewEvent()
	e.Set()
	require.True(t, e.IsSet())
	e.Reset()
	require.False(t, e.IsSet())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, e.Await(ctx), context.DeadlineExceeded)
}

type inlineExecutor struct{ calls atomic.Int64 }

func (x *inlineExecutor) Resume(h func()) error {
	x.calls.Add(1)
	h()
	return nil
}

func TestEvent_SetWithExecutorRoutesWakeups(t *testing.T) {
	e := NewEvent()
	exec := &inlineExecutor{}

	done := make(chan struct{})
	go func() {
		_ = e.Await(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	e.Set(WithExecutor(exec))
	<-done
	require.Equal(t, int64(1), exec.calls.Load())
}
