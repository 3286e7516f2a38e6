package pool

import (
	"context"

	"github.com/kestrelio/coro"
)

// Go is the convenience "schedule(functor, args...)" form from the source:
// it returns a lazily-started *coro.Task[T] whose body first schedules
// itself onto p, then runs fn once admitted.
func Go[T any](p *Pool, fn func(context.Context) (T, error)) *coro.Task[T] {
	return coro.NewTask(func(ctx context.Context) (T, error) {
		var zero T
		if err := p.Schedule(ctx); err != nil {
			return zero, err
		}
		return fn(ctx)
	})
}
