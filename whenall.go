package coro

import (
	"context"
	"errors"

	"github.com/kestrelio/coro/csync"
)

// WhenAll launches every awaitable on its own goroutine and blocks until all
// of them have completed, returning their results in launch order. A shared
// Latch initialized to len(aws)+1 is counted down by each child on
// completion and once by WhenAll itself immediately after launching every
// child, reproducing the fast path where every child has already finished
// synchronously before WhenAll would otherwise suspend. Any number of child
// errors are aggregated with errors.Join.
func WhenAll[T any](ctx context.Context, aws ...Awaitable[T]) ([]T, error) {
	results := make([]T, len(aws))
	errs := make([]error, len(aws))

	latch := csync.NewLatch(int64(len(aws)) + 1)
	for i, a := range aws {
		i, a := i, a
		go func() {
			defer latch.CountDown(1)
			results[i], errs[i] = a.Await(ctx)
		}()
	}
	latch.CountDown(1)

	if err := latch.Await(ctx); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

// whenAll is the shared driver behind the fixed-arity heterogeneous
// WhenAll2/3/4 wrappers: run each of n zero-arg thunks (which close over
// their own result slot) to completion, fanned out the same way as WhenAll.
func whenAll(ctx context.Context, thunks []func() error) error {
	errs := make([]error, len(thunks))

	latch := csync.NewLatch(int64(len(thunks)) + 1)
	for i, fn := range thunks {
		i, fn := i, fn
		go func() {
			defer latch.CountDown(1)
			errs[i] = fn()
		}()
	}
	latch.CountDown(1)

	if err := latch.Await(ctx); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// WhenAll2 awaits two heterogeneously-typed awaitables concurrently.
func WhenAll2[A, B any](ctx context.Context, a Awaitable[A], b Awaitable[B]) (A, B, error) {
	var va A
	var vb B
	err := whenAll(ctx, []func() error{
		func() error { v, e := a.Await(ctx); va = v; return e },
		func() error { v, e := b.Await(ctx); vb = v; return e },
	})
	return va, vb, err
}

// WhenAll3 awaits three heterogeneously-typed awaitables concurrently.
func WhenAll3[A, B, C any](ctx context.Context, a Awaitable[A], b Awaitable[B], c Awaitable[C]) (A, B, C, error) {
	var va A
	var vb B
	var vc C
	err := whenAll(ctx, []func() error{
		func() error { v, e := a.Await(ctx); va = v; return e },
		func() error { v, e := b.Await(ctx); vb = v; return e },
		func() error { v, e := c.Await(ctx); vc = v; return e },
	})
	return va, vb, vc, err
}

// WhenAll4 awaits four heterogeneously-typed awaitables concurrently.
func WhenAll4[A, B, C, D any](ctx context.Context, a Awaitable[A], b Awaitable[B], c Awaitable[C], d Awaitable[D]) (A, B, C, D, error) {
	var va A
	var vb B
	var vc C
	var vd D
	err := whenAll(ctx, []func() error{
		func() error { v, e := a.Await(ctx); va = v; return e },
		func() error { v, e := b.Await(ctx); vb = v; return e },
		func() error { v, e := c.Await(ctx); vc = v; return e },
		func() error { v, e := d.Await(ctx); vd = v; return e },
	})
	return va, vb, vc, vd, err
}
