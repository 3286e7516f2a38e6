package ioscheduler

import "time"

// reactorEventKind classifies one entry returned by a reactor's Wait call.
type reactorEventKind int

const (
	reactorEventFD reactorEventKind = iota
	reactorEventTimer
	reactorEventShutdown
	reactorEventScheduleSignal
)

type reactorEvent struct {
	kind reactorEventKind
	fd   int
	// readable/writable/errored/hup classify an reactorEventFD entry.
	readable, writable, errored, hup bool
}

// reactor is the platform OS-readiness backend a Scheduler drives. The only
// implementation in this port is the linux epoll/timerfd/eventfd backend in
// epoll_linux.go; epoll_unsupported.go provides the non-linux stub.
type reactor interface {
	// RegisterOneShot arms a one-shot subscription for fd/op: the kernel
	// delivers at most one notification before the registration must be
	// renewed.
	RegisterOneShot(fd int, op PollOp) error
	// Deregister removes any subscription for fd.
	Deregister(fd int) error

	// ArmTimer (re)arms the single OS timer to fire after d. A non-positive
	// d disarms it.
	ArmTimer(d time.Duration)

	// SignalSchedule wakes the event loop for the inline-scheduling path.
	SignalSchedule()
	// SignalShutdown wakes the event loop so it can observe shutdown.
	SignalShutdown()

	// Wait blocks for one OS-wait call and returns the full batch of events
	// it produced. A nil timeout blocks indefinitely (the armed timer or a
	// signal wakes it); manual mode passes an explicit timeout.
	Wait(timeout *time.Duration) ([]reactorEvent, error)

	Close() error
}
