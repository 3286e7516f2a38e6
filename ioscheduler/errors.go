package ioscheduler

import "errors"

// ErrUnsupportedPlatform is returned by New on platforms with no reactor
// backend (anything but linux in this port).
var ErrUnsupportedPlatform = errors.New("ioscheduler: unsupported platform")

// ErrShutDown is returned by Schedule, Poll, Resume, and friends once
// Shutdown has been called.
var ErrShutDown = errors.New("ioscheduler: shut down")

// ErrOnlyVoidTask is returned by ScheduleTask for anything that is not a
// coro.Task[struct{}] — enforced at the type level by ScheduleTask's
// signature, this error only remains reachable for a nil task.
var ErrOnlyVoidTask = errors.New("ioscheduler: only task[struct{}] may be scheduled detached")
