package coro

import (
	"fmt"
)

// Namespace prefixes every sentinel error in this package, matching the
// teacher's convention of namespacing error strings for quick log grepping.
const Namespace = "coro"

// TaskPanicError wraps a value recovered from a panic inside a Task body.
// It is coro's translation of "the coroutine body throws, the exception is
// captured at unhandled_exception and rethrown at consumption".
type TaskPanicError struct {
	Recovered any
}

func (e *TaskPanicError) Error() string {
	if err, ok := e.Recovered.(error); ok {
		return fmt.Sprintf("%s: task panicked: %v", Namespace, err)
	}
	return fmt.Sprintf("%s: task panicked: %v", Namespace, e.Recovered)
}

func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}
