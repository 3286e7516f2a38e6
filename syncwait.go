package coro

import (
	"context"
	"sync"
)

// syncWaitEvent is a manual-reset event built on a mutex/condvar pair,
// mirroring the source's sync_wait_event: a coroutine completion handler
// calls Set from whatever goroutine finishes last, and one or more
// ordinary (non-coroutine) goroutines block in Wait until that happens.
// Task already exposes this as a channel close; syncWaitEvent exists so
// Wait has an explicit bridge object to hand to an Awaitable implementation
// that isn't a Task, matching the source's design of sync_wait as a
// general-purpose bridge rather than a Task-only shortcut.
type syncWaitEvent struct {
	mu   sync.Mutex
	cond *sync.Cond
	set  bool
}

func newSyncWaitEvent() *syncWaitEvent {
	e := &syncWaitEvent{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *syncWaitEvent) Set() {
	e.mu.Lock()
	e.set = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *syncWaitEvent) Wait() {
	e.mu.Lock()
	for !e.set {
		e.cond.Wait()
	}
	e.mu.Unlock()
}

// Wait blocks the calling goroutine — which need not itself be running
// inside a Task — until the given Awaitable produces a result, using a
// syncWaitEvent as the handoff between the awaitable's completion and this
// blocking caller. It is the entry point ordinary, non-coroutine code uses
// to step into the coroutine world, the same role the source's sync_wait
// free function plays for main() and other blocking call sites.
func Wait[T any](a Awaitable[T]) (T, error) {
	return WaitContext(context.Background(), a)
}

// WaitContext is Wait with a cancellation context: if ctx is canceled
// before the awaitable completes, WaitContext returns ctx.Err() without
// waiting for the awaitable's goroutine to unwind.
func WaitContext[T any](ctx context.Context, a Awaitable[T]) (T, error) {
	if t, ok := a.(*Task[T]); ok {
		return t.Await(ctx)
	}

	ev := newSyncWaitEvent()
	var (
		value T
		err   error
	)
	go func() {
		value, err = a.Await(ctx)
		ev.Set()
	}()

	done := make(chan struct{})
	go func() {
		ev.Wait()
		close(done)
	}()

	select {
	case <-done:
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
