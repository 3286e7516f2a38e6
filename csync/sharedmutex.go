package csync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kestrelio/coro/metrics"
	"go.uber.org/zap"
)

// ErrNoExecutor is returned by NewSharedMutex when constructed without an
// Executor: the mutex needs somewhere to run parallel shared-waiter wake-ups
// and refuses to silently fall back to inline execution.
var ErrNoExecutor = errors.New("csync: shared mutex requires a non-nil executor")

type lockState int

const (
	unlocked lockState = iota
	lockedShared
	lockedExclusive
)

type smWaiter struct {
	next    *smWaiter
	shared  bool
	ch      chan struct{}
	granted bool
}

// SMOption configures a SharedMutex at construction time.
type SMOption func(*smConfig)

type smConfig struct {
	logger   *zap.Logger
	provider metrics.Provider
}

// WithSMLogger attaches a zap logger, used to log canceled lock waits at
// debug level. Defaults to zap.NewNop().
func WithSMLogger(logger *zap.Logger) SMOption {
	return func(c *smConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSMMetrics attaches a metrics.Provider used to record how long
// acquisitions had to wait. Defaults to a no-op provider.
func WithSMMetrics(p metrics.Provider) SMOption {
	return func(c *smConfig) {
		if p != nil {
			c.provider = p
		}
	}
}

// SharedMutex is a fair, FIFO-queued reader/writer lock. Unlike sync.RWMutex,
// waiters are served strictly in arrival order — a writer queued behind
// readers does not get starved by a continuous stream of new readers, and a
// reader queued behind a writer does not jump ahead of it. Waking a run of
// consecutive shared waiters is parallelized through the configured
// Executor; waking a lone exclusive waiter happens inline.
type SharedMutex struct {
	mu sync.Mutex

	state           lockState
	sharedUsers     int
	exclusiveWaiter bool

	head, tail *smWaiter

	exec Executor

	logger   *zap.Logger
	waitTime metrics.Histogram
}

// NewSharedMutex constructs a SharedMutex. exec must be non-nil: it is used
// to parallelize waking a consecutive run of shared waiters once a writer
// releases the lock.
func NewSharedMutex(exec Executor, opts ...SMOption) (*SharedMutex, error) {
	if exec == nil {
		return nil, ErrNoExecutor
	}
	cfg := smConfig{logger: zap.NewNop(), provider: metrics.NewNoopProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SharedMutex{
		exec:     exec,
		logger:   cfg.logger,
		waitTime: cfg.provider.Histogram("csync.sharedmutex_wait", metrics.WithUnit("seconds")),
	}, nil
}

func (m *SharedMutex) enqueue(w *smWaiter) {
	if m.tail == nil {
		m.head, m.tail = w, w
		return
	}
	m.tail.next = w
	m.tail = w
}

// abandon removes w from the wait queue if it has not yet been granted the
// lock, so a canceled Lock/LockShared call never leaves a dangling waiter for
// a later unlock() to grant to no one. It reports whether w was removed.
// If w was already granted, the caller must drain w.ch and release the hold
// itself instead of discarding it.
func (m *SharedMutex) abandon(w *smWaiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.granted {
		return false
	}

	var prev *smWaiter
	for cur := m.head; cur != nil; cur = cur.next {
		if cur == w {
			if prev == nil {
				m.head = cur.next
			} else {
				prev.next = cur.next
			}
			if cur == m.tail {
				m.tail = prev
			}
			break
		}
		prev = cur
	}

	m.exclusiveWaiter = false
	for cur := m.head; cur != nil; cur = cur.next {
		if !cur.shared {
			m.exclusiveWaiter = true
			break
		}
	}
	return true
}

// Lock acquires exclusive access, blocking until it is granted or ctx is
// done. On success it returns a Guard that releases the lock on Unlock.
func (m *SharedMutex) Lock(ctx context.Context) (*Guard, error) {
	m.mu.Lock()
	if m.state == unlocked {
		m.state = lockedExclusive
		m.mu.Unlock()
		return newGuard(m, false), nil
	}

	w := &smWaiter{shared: false, ch: make(chan struct{})}
	m.exclusiveWaiter = true
	m.enqueue(w)
	m.mu.Unlock()
	start := time.Now()

	select {
	case <-w.ch:
		m.waitTime.Record(time.Since(start).Seconds())
		return newGuard(m, false), nil
	case <-ctx.Done():
		if !m.abandon(w) {
			// Already granted the lock by the time we gave up on it: drain
			// the grant and release it immediately rather than leak it.
			<-w.ch
			newGuard(m, false).Unlock()
		}
		m.logger.Debug("csync: exclusive lock wait canceled", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

// LockShared acquires shared (read) access, blocking until it is granted or
// ctx is done.
func (m *SharedMutex) LockShared(ctx context.Context) (*Guard, error) {
	m.mu.Lock()
	if m.state != lockedExclusive && !m.exclusiveWaiter && m.head == nil {
		m.state = lockedShared
		m.sharedUsers++
		m.mu.Unlock()
		return newGuard(m, true), nil
	}

	w := &smWaiter{shared: true, ch: make(chan struct{})}
	m.enqueue(w)
	m.mu.Unlock()
	start := time.Now()

	select {
	case <-w.ch:
		m.waitTime.Record(time.Since(start).Seconds())
		return newGuard(m, true), nil
	case <-ctx.Done():
		if !m.abandon(w) {
			<-w.ch
			newGuard(m, true).Unlock()
		}
		m.logger.Debug("csync: shared lock wait canceled", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

// TryLock attempts to acquire exclusive access without blocking.
func (m *SharedMutex) TryLock() (*Guard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != unlocked {
		return nil, false
	}
	m.state = lockedExclusive
	return newGuard(m, false), true
}

// TryLockShared attempts to acquire shared access without blocking.
func (m *SharedMutex) TryLockShared() (*Guard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == lockedExclusive || m.exclusiveWaiter || m.head != nil {
		return nil, false
	}
	m.state = lockedShared
	m.sharedUsers++
	return newGuard(m, true), true
}

// unlock releases either a shared or exclusive hold and wakes the next
// waiter(s) per the FIFO queue. Called exactly once per Guard via Unlock.
func (m *SharedMutex) unlock(shared bool) {
	m.mu.Lock()

	if shared {
		m.sharedUsers--
		if m.sharedUsers > 0 {
			m.mu.Unlock()
			return
		}
	}
	m.state = unlocked

	if m.head == nil {
		m.mu.Unlock()
		return
	}

	if !m.head.shared {
		w := m.head
		m.head = w.next
		if m.head == nil {
			m.tail = nil
		}
		m.exclusiveWaiter = headIsExclusive(m.head)
		m.state = lockedExclusive
		w.granted = true
		// Only after the queue bookkeeping is finished may the mutex be
		// released; the actual wake happens outside the lock.
		m.mu.Unlock()
		close(w.ch)
		return
	}

	// wake a consecutive run of shared waiters. granted is set here, still
	// under mu, so abandon() and this pop can never race over the same
	// waiter: a waiter is either still on the queue (abandon can remove it)
	// or already granted (abandon must leave it alone), never in between.
	var run []*smWaiter
	for m.head != nil && m.head.shared {
		w := m.head
		m.head = w.next
		w.granted = true
		run = append(run, w)
	}
	if m.head == nil {
		m.tail = nil
	}
	m.exclusiveWaiter = headIsExclusive(m.head)
	m.state = lockedShared
	m.sharedUsers = len(run)
	m.mu.Unlock()

	for _, w := range run {
		w := w
		_ = m.exec.Resume(func() { close(w.ch) })
	}
}

func headIsExclusive(head *smWaiter) bool {
	return head != nil && !head.shared
}
