package csync

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelio/coro/metrics"
	"github.com/stretchr/testify/require"
)

func TestNewSharedMutex_RequiresExecutor(t *testing.T) {
	_, err := NewSharedMutex(nil)
	require.ErrorIs(t, err, ErrNoExecutor)
}

func TestSharedMutex_TryLockExclusiveExcludesEverything(t *testing.T) {
	sm, err := NewSharedMutex(&inlineExecutor{})
	require.NoError(t, err)

	g, ok := sm.TryLock()
	require.True(t, ok)

	_, ok = sm.TryLock()
	require.False(t, ok)
	_, ok = sm.TryLockShared()
	require.False(t, ok)

	g.Unlock()

	g2, ok := sm.TryLockShared()
	require.True(t, ok)
	g2.Unlock()
}

func TestSharedMutex_SharedReadersConcurrent(t *testing.T) {
	sm, err := NewSharedMutex(&inlineExecutor{})
	require.NoError(t, err)

	g1, ok := sm.TryLockShared()
	require.True(t, ok)
	g2, ok := sm.TryLockShared()
	require.True(t, ok)

	g1.Unlock()
	g2.Unlock()

	g3, ok := sm.TryLock()
	require.True(t, ok)
	g3.Unlock()
}

// TestSharedMutex_Fairness reproduces the fixed grant ordering: R1 acquires
// immediately, W queues behind it, R2 and R3 queue behind W. No schedule may
// let R2 or R3 complete before W has been granted and released.
func TestSharedMutex_Fairness(t *testing.T) {
	sm, err := NewSharedMutex(&inlineExecutor{})
	require.NoError(t, err)

	ctx := context.Background()
	var order []string
	orderCh := make(chan string, 4)

	r1, err := sm.LockShared(ctx)
	require.NoError(t, err)
	orderCh <- "R1"

	wGrantedAt := make(chan struct{})
	go func() {
		g, err := sm.Lock(ctx)
		require.NoError(t, err)
		orderCh <- "W"
		close(wGrantedAt)
		time.Sleep(20 * time.Millisecond)
		g.Unlock()
	}()
	time.Sleep(10 * time.Millisecond) // let W enqueue behind R1

	r2Done := make(chan struct{})
	r3Done := make(chan struct{})
	go func() {
		g, err := sm.LockShared(ctx)
		require.NoError(t, err)
		orderCh <- "R2"
		g.Unlock()
		close(r2Done)
	}()
	go func() {
		g, err := sm.LockShared(ctx)
		require.NoError(t, err)
		orderCh <- "R3"
		g.Unlock()
		close(r3Done)
	}()
	time.Sleep(10 * time.Millisecond) // let R2/R3 enqueue behind W

	r1.Unlock() // releases R1, should grant W next, not R2/R3

	<-r2Done
	<-r3Done

	for i := 0; i < 4; i++ {
		order = append(order, <-orderCh)
	}

	require.Equal(t, "R1", order[0])
	require.Equal(t, "W", order[1])
	require.ElementsMatch(t, []string{"R2", "R3"}, order[2:])
	<-wGrantedAt
}

// TestSharedMutex_CanceledWaiterDoesNotWedgeMutex reproduces a waiter whose
// ctx is canceled while queued behind a held exclusive lock. Releasing the
// holder afterward must not grant the lock to the abandoned waiter and then
// stall forever; a third party must still be able to acquire it.
func TestSharedMutex_CanceledWaiterDoesNotWedgeMutex(t *testing.T) {
	sm, err := NewSharedMutex(&inlineExecutor{})
	require.NoError(t, err)

	holder, err := sm.Lock(context.Background())
	require.NoError(t, err)

	waiterQueued := make(chan struct{})
	waiterDone := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		close(waiterQueued)
		_, err := sm.Lock(ctx)
		require.ErrorIs(t, err, context.Canceled)
		close(waiterDone)
	}()
	<-waiterQueued
	time.Sleep(10 * time.Millisecond) // let the waiter enqueue
	cancel()
	<-waiterDone

	holder.Unlock()

	done := make(chan struct{})
	go func() {
		g, err := sm.Lock(context.Background())
		require.NoError(t, err)
		g.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mutex wedged: abandoned waiter was granted the lock and never released it")
	}
}

func TestSharedMutex_RecordsWaitTime(t *testing.T) {
	provider := metrics.NewBasicProvider()
	sm, err := NewSharedMutex(&inlineExecutor{}, WithSMMetrics(provider))
	require.NoError(t, err)

	ctx := context.Background()
	g1, err := sm.Lock(ctx)
	require.NoError(t, err)

	waiterStarted := make(chan struct{})
	waiterDone := make(chan struct{})
	go func() {
		close(waiterStarted)
		g2, err := sm.Lock(ctx)
		require.NoError(t, err)
		g2.Unlock()
		close(waiterDone)
	}()
	<-waiterStarted
	time.Sleep(10 * time.Millisecond)
	g1.Unlock()
	<-waiterDone

	hist := provider.Histogram("csync.sharedmutex_wait").(*metrics.BasicHistogram)
	require.EqualValues(t, 1, hist.Snapshot().Count)
}
