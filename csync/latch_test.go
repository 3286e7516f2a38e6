package csync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatch_OpensWhenCountReachesZero(t *testing.T) {
	l := NewLatch(3)
	require.False(t, l.IsReady())

	l.CountDown(1)
	l.CountDown(1)
	require.False(t, l.IsReady())

	l.CountDown(1)
	require.True(t, l.IsReady())
	require.NoError(t, l.Await(context.Background()))
}

func TestLatch_NonPositiveCountIsAlreadyReady(t *testing.T) {
	l := NewLatch(0)
	require.True(t, l.IsReady())

	l2 := NewLatch(-5)
	require.True(t, l2.IsReady())
}

func TestLatch_ConcurrentCountDown(t *testing.T) {
	const n = 100
	l := NewLatch(n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			l.CountDown(1)
		}()
	}
	wg.Wait()
	require.True(t, l.IsReady())
	require.LessOrEqual(t, l.Remaining(), int64(0))
}

func TestLatch_AwaitTimesOut(t *testing.T) {
	l := NewLatch(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Await(ctx), context.DeadlineExceeded)
}
