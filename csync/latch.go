package csync

import (
	"context"
	"sync/atomic"
)

// Latch is a single-use countdown barrier: Await blocks until Remaining
// reaches zero. It is built directly on Event — the underlying wake
// mechanism is identical, a Latch just gates the Set call behind a counter.
type Latch struct {
	remaining atomic.Int64
	event     *Event
}

// NewLatch returns a Latch requiring n CountDown calls (summed) before it
// opens. A non-positive n is already open.
func NewLatch(n int64) *Latch {
	l := &Latch{event: NewEvent()}
	l.remaining.Store(n)
	if n <= 0 {
		l.event.Set()
	}
	return l
}

// CountDown decrements the remaining count by k (k defaults to 1 semantics
// are the caller's responsibility — pass the exact amount). Once the count
// reaches zero or below, the latch opens. CountDown is monotonic: further
// calls after the latch has opened have no effect beyond the counter value.
func (l *Latch) CountDown(k int64) {
	if k <= 0 {
		return
	}
	remaining := l.remaining.Add(-k)
	if remaining <= 0 {
		l.event.Set()
	}
}

// Await blocks until the latch's count reaches zero, or ctx is done.
func (l *Latch) Await(ctx context.Context) error {
	return l.event.Await(ctx)
}

// Remaining returns the current count. It may be negative if CountDown was
// called with a cumulative k exceeding the initial count.
func (l *Latch) Remaining() int64 {
	return l.remaining.Load()
}

// IsReady reports whether the latch has opened.
func (l *Latch) IsReady() bool {
	return l.event.IsSet()
}
