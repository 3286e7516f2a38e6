package ioscheduler

import (
	"context"
	"time"
)

// PollFD is a small convenience binding a raw descriptor to the Scheduler
// that watches it, so call sites don't have to repeat the (fd, *Scheduler)
// pair on every call. Ported from the source's poll_operation, which binds
// a poll awaitable to a concrete socket wrapper rather than a bare
// descriptor.
type PollFD struct {
	FD        int
	Scheduler *Scheduler
}

// Read waits for fd to become readable, with no timeout.
func (p PollFD) Read(ctx context.Context) (PollStatus, error) {
	return p.Scheduler.Poll(ctx, p.FD, PollOpRead, 0)
}

// Write waits for fd to become writable, with no timeout.
func (p PollFD) Write(ctx context.Context) (PollStatus, error) {
	return p.Scheduler.Poll(ctx, p.FD, PollOpWrite, 0)
}

// ReadTimeout waits for fd to become readable, or for timeout to elapse.
func (p PollFD) ReadTimeout(ctx context.Context, timeout time.Duration) (PollStatus, error) {
	return p.Scheduler.Poll(ctx, p.FD, PollOpRead, timeout)
}

// WriteTimeout waits for fd to become writable, or for timeout to elapse.
func (p PollFD) WriteTimeout(ctx context.Context, timeout time.Duration) (PollStatus, error) {
	return p.Scheduler.Poll(ctx, p.FD, PollOpWrite, timeout)
}
