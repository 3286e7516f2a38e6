// Package pool implements a FIFO executor of zero-argument handles — the
// stand-in for a coroutine handle, since resuming a handle in Go is simply
// calling it. Pool is the scheduling surface coro.Task bodies and the
// ioscheduler package resume work through.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelio/coro/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Handle is a resumable unit of work: a coroutine frame reduced to "the next
// thing to run".
type Handle = func()

// Pool is a bounded- or dynamic-worker FIFO executor of Handles.
type Pool struct {
	cfg config

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Handle
	shutdown bool

	workerCount int
	admission   *semaphore.Weighted // nil unless cfg.Fixed

	inflight sync.WaitGroup
	queued   atomic.Int64
	size     atomic.Int64 // handles queued or currently running; 0 once drained

	shutdownOnce sync.Once
	workersDone  chan struct{}

	queueDepth metrics.UpDownCounter
	processed  metrics.Counter
	panicked   metrics.Counter
	handleTime metrics.Histogram
}

// New constructs and starts a Pool. With no options the pool is dynamic,
// sized to runtime.GOMAXPROCS(0).
func New(opts ...Option) *Pool {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := resolveWorkerCount(cfg)
	p := &Pool{
		cfg:         cfg,
		workerCount: n,
		workersDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	if cfg.Fixed {
		p.admission = semaphore.NewWeighted(int64(n))
	}

	p.queueDepth = cfg.Provider.UpDownCounter("pool.queue_depth", metrics.WithUnit("1"))
	p.processed = cfg.Provider.Counter("pool.handles_processed", metrics.WithUnit("1"))
	p.panicked = cfg.Provider.Counter("pool.handles_panicked", metrics.WithUnit("1"))
	p.handleTime = cfg.Provider.Histogram("pool.handle_duration", metrics.WithUnit("seconds"))

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go p.workerLoop(&wg)
	}
	go func() {
		wg.Wait()
		close(p.workersDone)
	}()

	return p
}

func (p *Pool) workerLoop(done *sync.WaitGroup) {
	defer done.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.shutdown {
			p.mu.Unlock()
			return
		}
		h := p.queue[0]
		p.queue = p.queue[1:]
		p.queued.Add(-1)
		p.queueDepth.Add(-1)
		p.mu.Unlock()

		p.invoke(h)
	}
}

func (p *Pool) invoke(h Handle) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.cfg.Logger.Error("pool: handle panicked", zap.Any("recovered", r))
		}
		p.processed.Add(1)
		p.handleTime.Record(time.Since(start).Seconds())
		p.size.Add(-1)
		p.inflight.Done()
	}()
	h()
}

// enqueue appends a handle to the FIFO tail and wakes one waiting worker.
func (p *Pool) enqueue(h Handle) {
	p.inflight.Add(1)
	p.size.Add(1)
	p.mu.Lock()
	p.queue = append(p.queue, h)
	p.queued.Add(1)
	p.mu.Unlock()
	p.queueDepth.Add(1)
	p.cond.Signal()
}

// Resume enqueues a single handle directly, bypassing the awaitable
// round-trip Schedule performs. Returns ErrShutDown if the pool has been
// shut down, or ErrNilHandle for a nil handle.
func (p *Pool) Resume(h Handle) error {
	if h == nil {
		return ErrNilHandle
	}
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShutDown
	}
	p.mu.Unlock()
	p.enqueue(h)
	return nil
}

// ResumeAll enqueues every handle in hs. Its wake policy matches the
// notification cost of the batch: a Broadcast if the batch is at least as
// large as the worker count (every worker will have something to do), or a
// Signal per handle otherwise (cheaper than waking idle workers that have
// nothing queued for them).
func (p *Pool) ResumeAll(hs []Handle) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShutDown
	}
	for _, h := range hs {
		if h == nil {
			p.mu.Unlock()
			return ErrNilHandle
		}
	}
	p.inflight.Add(len(hs))
	p.size.Add(int64(len(hs)))
	p.queue = append(p.queue, hs...)
	p.queued.Add(int64(len(hs)))
	broadcast := len(hs) >= p.workerCount
	p.mu.Unlock()
	p.queueDepth.Add(int64(len(hs)))

	if broadcast {
		p.cond.Broadcast()
	} else {
		for range hs {
			p.cond.Signal()
		}
	}
	return nil
}

// Schedule is the core awaitable primitive: it enqueues a continuation that
// closes an internal channel, signals one worker, and blocks the calling
// goroutine until that continuation runs (or ctx is done).
func (p *Pool) Schedule(ctx context.Context) error {
	if p.admission != nil {
		if err := p.admission.Acquire(ctx, 1); err != nil {
			return err
		}
		defer p.admission.Release(1)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShutDown
	}
	p.mu.Unlock()

	resumeCh := make(chan struct{})
	if err := p.Resume(func() { close(resumeCh) }); err != nil {
		return err
	}

	select {
	case <-resumeCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Yield is an alias for Schedule: from inside work already running on the
// pool, it gives other queued handles a turn before resuming the caller.
func (p *Pool) Yield(ctx context.Context) error {
	return p.Schedule(ctx)
}

// Shutdown stops accepting new work, wakes every worker, and blocks until
// the queue has drained and every already-accepted handle has run. ctx
// bounds how long the caller waits for the drain to finish; if ctx expires
// first, Shutdown returns ctx.Err() without aborting the drain — the drain
// keeps running in the background until it genuinely completes. Shutdown is
// idempotent.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()
		p.cond.Broadcast()
	})

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		<-p.workersDone
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the number of handles currently queued or running — the
// in-flight count, per §4.4's size counter. It reaches zero once the pool
// has fully drained, unlike the (constant) worker count.
func (p *Pool) Size() int64 {
	return p.size.Load()
}

// QueueSize returns the number of handles currently queued (not counting
// ones already picked up by a worker).
func (p *Pool) QueueSize() int {
	return int(p.queued.Load())
}
