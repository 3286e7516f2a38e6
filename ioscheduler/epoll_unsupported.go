//go:build !linux

package ioscheduler

import "time"

func newReactor() (reactor, error) {
	return nil, ErrUnsupportedPlatform
}

// unsupportedReactor satisfies the reactor interface for non-linux builds
// even though newReactor never returns one; it exists purely so the
// interface's method set has a compile-time reference implementation to
// check against on every platform this package cross-compiles for.
type unsupportedReactor struct{}

func (unsupportedReactor) RegisterOneShot(fd int, op PollOp) error { return ErrUnsupportedPlatform }
func (unsupportedReactor) Deregister(fd int) error                 { return ErrUnsupportedPlatform }
func (unsupportedReactor) ArmTimer(d time.Duration)                {}
func (unsupportedReactor) SignalSchedule()                         {}
func (unsupportedReactor) SignalShutdown()                         {}
func (unsupportedReactor) Wait(timeout *time.Duration) ([]reactorEvent, error) {
	return nil, ErrUnsupportedPlatform
}
func (unsupportedReactor) Close() error { return nil }
