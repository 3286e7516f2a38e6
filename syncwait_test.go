package coro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWait_BlocksUntilTaskCompletes(t *testing.T) {
	task := NewTask(func(ctx context.Context) (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	})

	v, err := Wait[int](task)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestWait_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	task := NewTask(func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	_, err := Wait[int](task)
	require.ErrorIs(t, err, wantErr)
}

func TestWaitContext_CanceledBeforeCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewTask(func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	})

	_, err := WaitContext[int](ctx, task)
	require.ErrorIs(t, err, context.Canceled)
}

// genericAwaitable exercises the non-Task path through WaitContext, since a
// *Task gets a fast path straight to its done channel.
type genericAwaitable struct {
	value int
	err   error
	delay time.Duration
}

func (g genericAwaitable) Await(ctx context.Context) (int, error) {
	select {
	case <-time.After(g.delay):
		return g.value, g.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestWait_NonTaskAwaitable(t *testing.T) {
	a := genericAwaitable{value: 7, delay: 5 * time.Millisecond}
	v, err := Wait[int](a)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}
