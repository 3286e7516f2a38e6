// Package ioscheduler implements an epoll-backed event loop: the scheduling
// surface coro.Task bodies suspend on when they need to wait for I/O
// readiness or a timer, rather than for another goroutine's result.
//
// A Scheduler owns one OS readiness facility, an optional embedded
// *pool.Pool used to resume ready handles off the event-loop goroutine, and
// a container of detached ("fire and forget") tasks.
package ioscheduler
