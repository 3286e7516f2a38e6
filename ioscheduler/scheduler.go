package ioscheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelio/coro"
	"github.com/kestrelio/coro/metrics"
	"github.com/kestrelio/coro/pool"
	"go.uber.org/zap"
)

// Scheduler owns one OS readiness facility, an optional embedded *pool.Pool,
// and a detached-task container. It is the Go translation of an
// epoll/timerfd/eventfd-based reactor: the scheduling surface a coro.Task
// body calls into when it needs to suspend on I/O or a timer rather than on
// another goroutine's result.
type Scheduler struct {
	cfg config
	r   reactor
	te  *timedEvents
	pool *pool.Pool
	container *taskContainer

	pollsMu sync.Mutex
	polls   map[int]*pollInfo

	inlineMu   sync.Mutex
	inlineList []func()

	active atomic.Int64

	shutdown     atomic.Bool
	shutdownOnce sync.Once
	loopDone     chan struct{}

	activeGauge   metrics.UpDownCounter
	pollsResumed  metrics.Counter
	timeoutsFired metrics.Counter
	detachedGauge metrics.UpDownCounter
}

// New constructs a Scheduler. On non-linux platforms it returns
// ErrUnsupportedPlatform.
func New(opts ...Option) (*Scheduler, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := newReactor()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:       cfg,
		r:         r,
		te:        newTimedEvents(),
		container: newTaskContainer(),
		polls:     make(map[int]*pollInfo),
		loopDone:  make(chan struct{}),
	}

	s.activeGauge = cfg.Provider.UpDownCounter("ioscheduler.active_suspensions", metrics.WithUnit("1"))
	s.pollsResumed = cfg.Provider.Counter("ioscheduler.polls_resumed", metrics.WithUnit("1"))
	s.timeoutsFired = cfg.Provider.Counter("ioscheduler.timeouts_fired", metrics.WithUnit("1"))
	s.detachedGauge = cfg.Provider.UpDownCounter("ioscheduler.detached_tasks", metrics.WithUnit("1"))

	if cfg.ExecutionStrategy == ExecutionStrategyThroughputPool {
		s.pool = pool.New(cfg.poolOpts...)
	}

	if cfg.ThreadStrategy == ThreadStrategySpawn {
		go s.loop()
	} else {
		close(s.loopDone) // nothing to join in manual mode
	}

	return s, nil
}

func (s *Scheduler) loop() {
	if s.cfg.onThreadStart != nil {
		s.cfg.onThreadStart()
	}
	defer func() {
		if s.cfg.onThreadStop != nil {
			s.cfg.onThreadStop()
		}
		close(s.loopDone)
	}()

	for {
		events, err := s.r.Wait(nil)
		if err != nil {
			s.cfg.Logger.Error("ioscheduler: wait failed", zap.Error(err))
			continue
		}
		if s.processBatch(events) {
			return
		}
	}
}

// ProcessEvents drives a single OS-wait/classify/resume cycle, for
// ThreadStrategyManual mode. timeout bounds how long the call blocks; a
// non-positive timeout blocks indefinitely.
func (s *Scheduler) ProcessEvents(timeout time.Duration) error {
	var t *time.Duration
	if timeout > 0 {
		t = &timeout
	}
	events, err := s.r.Wait(t)
	if err != nil {
		return err
	}
	s.processBatch(events)
	return nil
}

// processBatch classifies every event in one OS-wait batch before resuming
// any handle — the mechanism that prevents a frame being freed while a
// second event for the same pollInfo is still in flight (§4.7.3's
// rationale). It returns true if a shutdown signal was observed.
func (s *Scheduler) processBatch(events []reactorEvent) (shutdownSeen bool) {
	var toResume []func()

	for _, ev := range events {
		switch ev.kind {
		case reactorEventShutdown:
			shutdownSeen = true

		case reactorEventTimer:
			expired, newHead, hasHead := s.te.popExpired(time.Now())
			for _, e := range expired {
				pi := e.pi
				if !pi.markProcessed() {
					continue
				}
				// A pure timer (YieldFor/YieldUntil) firing is its event; only
				// a Poll whose deadline passed first has timed out.
				pi.status = PollStatusEvent
				if pi.fd != noFD {
					pi.status = PollStatusTimeout
					s.pollsMu.Lock()
					delete(s.polls, pi.fd)
					s.pollsMu.Unlock()
					_ = s.r.Deregister(pi.fd)
				}
				s.timeoutsFired.Add(1)
				toResume = append(toResume, makeResume(pi))
			}
			if hasHead {
				s.r.ArmTimer(time.Until(newHead))
			} else {
				s.r.ArmTimer(0)
			}

		case reactorEventScheduleSignal:
			s.inlineMu.Lock()
			local := s.inlineList
			s.inlineList = nil
			s.inlineMu.Unlock()
			toResume = append(toResume, local...)

		case reactorEventFD:
			s.pollsMu.Lock()
			pi, ok := s.polls[ev.fd]
			if ok {
				delete(s.polls, ev.fd)
			}
			s.pollsMu.Unlock()
			if !ok || !pi.markProcessed() {
				continue
			}

			switch {
			case ev.errored:
				pi.status = PollStatusError
			case ev.hup:
				pi.status = PollStatusClosed
			default:
				pi.status = PollStatusEvent
			}

			_ = s.r.Deregister(pi.fd)
			s.removeTimerEntry(pi)
			s.pollsResumed.Add(1)
			toResume = append(toResume, makeResume(pi))
		}
	}

	// Only after the whole batch has been classified do we resume anything.
	for _, fn := range toResume {
		if s.cfg.ExecutionStrategy == ExecutionStrategyThroughputPool && s.pool != nil {
			_ = s.pool.Resume(fn)
		} else {
			fn()
		}
	}

	return shutdownSeen
}

func makeResume(pi *pollInfo) func() {
	return func() { close(pi.resumeCh) }
}

// Schedule suspends the caller and resumes it either on the embedded
// thread pool (throughput mode) or on the event-loop goroutine via the
// schedule signal (inline mode).
func (s *Scheduler) Schedule(ctx context.Context) error {
	if s.shutdown.Load() {
		return ErrShutDown
	}

	s.active.Add(1)
	s.activeGauge.Add(1)
	defer func() {
		s.active.Add(-1)
		s.activeGauge.Add(-1)
	}()

	resumeCh := make(chan struct{})
	cont := func() { close(resumeCh) }

	if s.cfg.ExecutionStrategy == ExecutionStrategyThroughputPool {
		if err := s.pool.Resume(cont); err != nil {
			return err
		}
	} else {
		s.inlineMu.Lock()
		s.inlineList = append(s.inlineList, cont)
		s.inlineMu.Unlock()
		s.r.SignalSchedule()
	}

	select {
	case <-resumeCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Yield is a synonym for Schedule.
func (s *Scheduler) Yield(ctx context.Context) error {
	return s.Schedule(ctx)
}

// Resume enqueues h in whichever execution mode is configured, without the
// suspend/resume round trip Schedule performs.
func (s *Scheduler) Resume(h func()) error {
	if s.shutdown.Load() {
		return ErrShutDown
	}
	if s.cfg.ExecutionStrategy == ExecutionStrategyThroughputPool {
		return s.pool.Resume(h)
	}
	s.inlineMu.Lock()
	s.inlineList = append(s.inlineList, h)
	s.inlineMu.Unlock()
	s.r.SignalSchedule()
	return nil
}

// ScheduleAfter is equivalent to YieldFor.
func (s *Scheduler) ScheduleAfter(ctx context.Context, d time.Duration) error {
	_, err := s.YieldFor(ctx, d)
	return err
}

// ScheduleAt is equivalent to YieldUntil.
func (s *Scheduler) ScheduleAt(ctx context.Context, tp time.Time) error {
	_, err := s.YieldUntil(ctx, tp)
	return err
}

// YieldFor suspends for at least d (a non-positive d is equivalent to
// Schedule) and resumes with PollStatusEvent on timer fire.
func (s *Scheduler) YieldFor(ctx context.Context, d time.Duration) (PollStatus, error) {
	if d <= 0 {
		return PollStatusEvent, s.Schedule(ctx)
	}
	return s.suspendOnTimer(ctx, time.Now().Add(d))
}

// YieldUntil suspends until tp (a tp already in the past is equivalent to
// Schedule) and resumes with PollStatusEvent on timer fire.
func (s *Scheduler) YieldUntil(ctx context.Context, tp time.Time) (PollStatus, error) {
	if !tp.After(time.Now()) {
		return PollStatusEvent, s.Schedule(ctx)
	}
	return s.suspendOnTimer(ctx, tp)
}

func (s *Scheduler) suspendOnTimer(ctx context.Context, deadline time.Time) (PollStatus, error) {
	if s.shutdown.Load() {
		return PollStatusError, ErrShutDown
	}

	s.active.Add(1)
	s.activeGauge.Add(1)
	defer func() {
		s.active.Add(-1)
		s.activeGauge.Add(-1)
	}()

	pi := newPollInfo(noFD, PollOpRead)
	pi.deadline = deadline
	becameHead := s.te.insert(pi, deadline)
	if becameHead {
		s.r.ArmTimer(time.Until(deadline))
	}

	select {
	case <-pi.resumeCh:
		return pi.status, nil
	case <-ctx.Done():
		if pi.markProcessed() {
			s.removeTimerEntry(pi)
			return PollStatusError, ctx.Err()
		}
		<-pi.resumeCh
		return pi.status, nil
	}
}

// removeTimerEntry deletes pi's timed-heap entry, if any, and re-arms the
// OS timer if that changed the earliest deadline.
func (s *Scheduler) removeTimerEntry(pi *pollInfo) {
	if pi.timerIndex < 0 {
		return
	}
	newHead, ok, headChanged := s.te.remove(pi.timerIndex)
	if !headChanged {
		return
	}
	if ok {
		s.r.ArmTimer(time.Until(newHead))
	} else {
		s.r.ArmTimer(0)
	}
}

// Poll suspends until fd becomes ready for op, the timeout elapses, or an
// error/close is detected — §4.7.3's algorithm.
func (s *Scheduler) Poll(ctx context.Context, fd int, op PollOp, timeout time.Duration) (PollStatus, error) {
	if s.shutdown.Load() {
		return PollStatusError, ErrShutDown
	}

	s.active.Add(1)
	s.activeGauge.Add(1)
	defer func() {
		s.active.Add(-1)
		s.activeGauge.Add(-1)
	}()

	pi := newPollInfo(fd, op)

	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		pi.deadline = deadline
		becameHead := s.te.insert(pi, deadline)
		if becameHead {
			s.r.ArmTimer(time.Until(deadline))
		}
	}

	s.pollsMu.Lock()
	s.polls[fd] = pi
	s.pollsMu.Unlock()

	if err := s.r.RegisterOneShot(fd, op); err != nil {
		s.pollsMu.Lock()
		delete(s.polls, fd)
		s.pollsMu.Unlock()
		return PollStatusError, err
	}

	select {
	case <-pi.resumeCh:
		return pi.status, nil
	case <-ctx.Done():
		if pi.markProcessed() {
			s.pollsMu.Lock()
			delete(s.polls, fd)
			s.pollsMu.Unlock()
			_ = s.r.Deregister(fd)
			s.removeTimerEntry(pi)
			return PollStatusError, ctx.Err()
		}
		<-pi.resumeCh
		return pi.status, nil
	}
}

// ScheduleTask transfers ownership of a detached task into the internal
// task container and starts it. Only void-returning tasks are accepted —
// there is nowhere for a result to go — enforced here at the type level by
// accepting only *coro.Task[struct{}].
func (s *Scheduler) ScheduleTask(t *coro.Task[struct{}]) error {
	if t == nil {
		return ErrOnlyVoidTask
	}
	if s.shutdown.Load() {
		return ErrShutDown
	}

	idx := s.container.put(t)
	s.detachedGauge.Add(1)
	wrapped := coro.NewTask(func(ctx context.Context) (struct{}, error) {
		if err := s.Schedule(ctx); err != nil {
			return struct{}{}, err
		}
		_, err := t.Await(ctx)
		if err != nil {
			s.cfg.Logger.Error("ioscheduler: detached task failed", zap.Error(err))
		}
		s.container.markPendingDelete(idx)
		return struct{}{}, nil
	})
	wrapped.Start()
	return nil
}

// GarbageCollect reclaims every completed detached task's slot.
func (s *Scheduler) GarbageCollect() {
	reclaimed := s.container.reclaim()
	if reclaimed > 0 {
		s.detachedGauge.Add(-int64(reclaimed))
	}
}

// Size reflects the active-task count (active suspensions plus occupied
// detached-task slots), plus the embedded thread pool's own in-flight count
// in throughput mode. A finished detached task's slot stays counted until
// GarbageCollect reclaims it; Shutdown runs GarbageCollect while it waits
// for Size() to reach zero.
func (s *Scheduler) Size() int64 {
	n := s.active.Load() + int64(s.container.size())
	if s.pool != nil {
		n += s.pool.Size()
	}
	return n
}

// Empty reports whether Size() == 0.
func (s *Scheduler) Empty() bool {
	return s.Size() == 0
}

// Shutdown initiates an orderly shutdown: stop accepting new work, drain
// the embedded thread pool, signal the event loop, and wait for it to join.
// It returns only once every outstanding poll/timer/inline suspension has
// completed or timed out — shutdown does not forcibly cancel them.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdown.Store(true)
		if s.pool != nil {
			_ = s.pool.Shutdown(ctx)
		}
		s.r.SignalShutdown()
	})

	select {
	case <-s.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		s.GarbageCollect()
		if s.Size() == 0 {
			break
		}
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.r.Close()
}
