//go:build linux

package ioscheduler

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor is the Linux reactor backend: one epoll set, one
// CLOCK_MONOTONIC timerfd re-armed to the nearest deadline, and two
// eventfds for the shutdown and schedule signals — exactly §6's Linux row
// (epoll + timerfd + eventfd×2), with one-shot registrations carrying
// read/write/RDHUP/HUP interest.
type epollReactor struct {
	epfd int

	timerFD    int
	shutdownFD int
	scheduleFD int

	scheduleMu      sync.Mutex
	schedulePending bool
}

func newReactor() (reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ioscheduler: epoll_create1: %w", err)
	}

	timerFD, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("ioscheduler: timerfd_create: %w", err)
	}

	shutdownFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		unix.Close(timerFD)
		return nil, fmt.Errorf("ioscheduler: eventfd(shutdown): %w", err)
	}

	scheduleFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		unix.Close(timerFD)
		unix.Close(shutdownFD)
		return nil, fmt.Errorf("ioscheduler: eventfd(schedule): %w", err)
	}

	r := &epollReactor{epfd: epfd, timerFD: timerFD, shutdownFD: shutdownFD, scheduleFD: scheduleFD}

	for _, fd := range []int{timerFD, shutdownFD, scheduleFD} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			r.Close()
			return nil, fmt.Errorf("ioscheduler: epoll_ctl add sentinel fd %d: %w", fd, err)
		}
	}

	return r, nil
}

func (r *epollReactor) epollEventsFor(op PollOp) uint32 {
	events := uint32(unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	switch op {
	case PollOpRead:
		events |= unix.EPOLLIN
	case PollOpWrite:
		events |= unix.EPOLLOUT
	case PollOpReadWrite:
		events |= unix.EPOLLIN | unix.EPOLLOUT
	}
	return events
}

func (r *epollReactor) RegisterOneShot(fd int, op PollOp) error {
	ev := unix.EpollEvent{Events: r.epollEventsFor(op), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if err == unix.EEXIST {
			return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
		}
		return fmt.Errorf("ioscheduler: epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

func (r *epollReactor) Deregister(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("ioscheduler: epoll_ctl del %d: %w", fd, err)
	}
	return nil
}

func (r *epollReactor) ArmTimer(d time.Duration) {
	var spec unix.ItimerSpec
	if d > 0 {
		spec.Value = unix.NsecToTimespec(d.Nanoseconds())
	}
	_ = unix.TimerfdSettime(r.timerFD, 0, &spec, nil)
}

func (r *epollReactor) signal(fd int) {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, _ = unix.Write(fd, buf[:])
}

func (r *epollReactor) drain(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (r *epollReactor) SignalShutdown() {
	r.signal(r.shutdownFD)
}

func (r *epollReactor) SignalSchedule() {
	r.scheduleMu.Lock()
	already := r.schedulePending
	r.schedulePending = true
	r.scheduleMu.Unlock()
	if !already {
		r.signal(r.scheduleFD)
	}
}

func (r *epollReactor) Wait(timeout *time.Duration) ([]reactorEvent, error) {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
		if ms < 0 {
			ms = 0
		}
	}

	raw := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(r.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("ioscheduler: epoll_wait: %w", err)
	}

	events := make([]reactorEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		switch fd {
		case r.timerFD:
			r.drain(r.timerFD)
			events = append(events, reactorEvent{kind: reactorEventTimer})
		case r.shutdownFD:
			r.drain(r.shutdownFD)
			events = append(events, reactorEvent{kind: reactorEventShutdown})
		case r.scheduleFD:
			r.drain(r.scheduleFD)
			r.scheduleMu.Lock()
			r.schedulePending = false
			r.scheduleMu.Unlock()
			events = append(events, reactorEvent{kind: reactorEventScheduleSignal})
		default:
			events = append(events, reactorEvent{
				kind:     reactorEventFD,
				fd:       fd,
				readable: ev.Events&unix.EPOLLIN != 0,
				writable: ev.Events&unix.EPOLLOUT != 0,
				errored:  ev.Events&unix.EPOLLERR != 0,
				hup:      ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			})
		}
	}
	return events, nil
}

func (r *epollReactor) Close() error {
	unix.Close(r.scheduleFD)
	unix.Close(r.shutdownFD)
	unix.Close(r.timerFD)
	return unix.Close(r.epfd)
}
