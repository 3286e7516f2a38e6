package coro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestGenerator_CountingSequence accumulates the first 101 values (0..100),
// breaking early once a value reaches 100, and checks the running sum is
// 5050 — the triangular number for n=100.
func TestGenerator_CountingSequence(t *testing.T) {
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	})
	defer gen.Close()

	ctx := context.Background()
	sum := 0
	for gen.Next(ctx) {
		v := gen.Value()
		sum += v
		if v >= 100 {
			break
		}
	}

	require.Equal(t, 5050, sum)
}

func TestGenerator_FinishesWithoutYielding(t *testing.T) {
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {})
	defer gen.Close()

	require.False(t, gen.Next(context.Background()))
	require.NoError(t, gen.Err())
}

func TestGenerator_PropagatesPanicAsError(t *testing.T) {
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {
		panic("boom")
	})
	defer gen.Close()

	require.False(t, gen.Next(context.Background()))
	var panicErr *TaskPanicError
	require.True(t, errors.As(gen.Err(), &panicErr))
}

func TestGenerator_SeqRangeOverFunc(t *testing.T) {
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {
		for i := 1; i <= 5; i++ {
			if !yield(i) {
				return
			}
		}
	})

	sum := 0
	for v := range gen.Seq() {
		sum += v
	}
	require.Equal(t, 15, sum)
}

// TestGenerator_NextCancelUnblocksBody checks that canceling the ctx passed
// to a later Next call (with no Close ever called) still unwinds the body
// goroutine, instead of leaving it parked on yield forever.
func TestGenerator_NextCancelUnblocksBody(t *testing.T) {
	started := make(chan struct{})
	bodyReturned := make(chan struct{})
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {
		close(started)
		for i := 0; ; i++ {
			if !yield(i) {
				close(bodyReturned)
				return
			}
		}
	})

	require.True(t, gen.Next(context.Background()))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, gen.Next(ctx))
	require.ErrorIs(t, gen.Err(), context.Canceled)

	select {
	case <-bodyReturned:
	case <-time.After(time.Second):
		t.Fatal("generator body never unblocked after Next's ctx was canceled")
	}
}

func TestGenerator_CloseUnblocksBody(t *testing.T) {
	started := make(chan struct{})
	gen := NewGenerator(func(ctx context.Context, yield func(int) bool) {
		close(started)
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	})

	ctx := context.Background()
	require.True(t, gen.Next(ctx))
	<-started
	gen.Close()
}
