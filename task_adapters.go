package coro

import "context"

// TaskFunc, TaskValue, and TaskError adapt the three common task-body
// shapes into the func(context.Context) (T, error) NewTask expects — the
// same three signatures the teacher's task.go recognized for
// func(context.Context) (R, error) / func(context.Context) R /
// func(context.Context) error.

// TaskFunc builds a Task from a function returning both a value and an error.
func TaskFunc[T any](fn func(context.Context) (T, error)) *Task[T] {
	return NewTask(fn)
}

// TaskValue builds a Task from a function that cannot fail.
func TaskValue[T any](fn func(context.Context) T) *Task[T] {
	return NewTask(func(ctx context.Context) (T, error) {
		return fn(ctx), nil
	})
}

// TaskError builds a Task[struct{}] from a function that only reports
// success or failure — the Go analogue of task<void>.
func TaskError(fn func(context.Context) error) *Task[struct{}] {
	return NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
