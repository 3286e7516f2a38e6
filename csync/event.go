// Package csync provides the synchronization primitives the scheduling core
// is built from: a lock-free manual-reset Event, a countdown Latch built on top
// of it, and a fair reader/writer SharedMutex.
package csync

import (
	"context"
	"sync/atomic"
)

// waiterNode is an intrusive singly-linked LIFO list node. Closing ch is how
// a waiter is resumed.
type waiterNode struct {
	next *waiterNode
	ch   chan struct{}
}

// eventSet is a sentinel pointer distinct from any real *waiterNode; once an
// Event's state holds this pointer the event is "set" until Reset. Its
// identity, not its (zero) contents, is what matters.
var eventSet = &waiterNode{}

// Event is a lock-free, manual-reset, broadcast-on-set synchronization point. Its
// state is a single atomic.Pointer[waiterNode] encoding three logical states:
// nil (unset, no waiters), a chain of waiterNodes (unset, waiters queued), or
// eventSet (set). Await and Set both operate purely through CAS loops.
type Event struct {
	state atomic.Pointer[waiterNode]
}

// NewEvent returns an unset Event.
func NewEvent() *Event {
	return &Event{}
}

// Await blocks until the event is Set, or ctx is done. Calling Await on an
// already-set event returns immediately.
func (e *Event) Await(ctx context.Context) error {
	for {
		cur := e.state.Load()
		if cur == eventSet {
			return nil
		}

		node := &waiterNode{next: cur, ch: make(chan struct{})}
		if e.state.CompareAndSwap(cur, node) {
			select {
			case <-node.ch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		// lost the race against a concurrent Await or Set; reload and retry
	}
}

// SetOption configures how Set wakes waiters.
type SetOption func(*setConfig)

type setConfig struct {
	fifo     bool
	executor Executor
}

// Executor is the minimal interface Set needs to hand off waiter wake-ups to
// a worker pool instead of running them inline. *pool.Pool satisfies this.
type Executor interface {
	Resume(h func()) error
}

// WithFIFO reverses the captured waiter list before waking it, so waiters
// are resumed in the order they called Await rather than LIFO registration
// order. This costs an O(N) list reversal at Set time.
func WithFIFO() SetOption {
	return func(c *setConfig) { c.fifo = true }
}

// WithExecutor routes each waiter's wake-up through exec.Resume instead of
// closing its channel inline on the Set goroutine, so waiters resume in
// parallel rather than serially on the caller.
func WithExecutor(exec Executor) SetOption {
	return func(c *setConfig) { c.executor = exec }
}

// Set marks the event set until the next Reset and wakes every waiter
// registered so far. Calling Set on an event that is already set is a no-op.
func (e *Event) Set(opts ...SetOption) {
	cfg := setConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var head *waiterNode
	for {
		cur := e.state.Load()
		if cur == eventSet {
			return
		}
		if e.state.CompareAndSwap(cur, eventSet) {
			head = cur
			break
		}
	}

	nodes := collectNodes(head, cfg.fifo)
	for _, n := range nodes {
		n := n
		if cfg.executor != nil {
			_ = cfg.executor.Resume(func() { close(n.ch) })
		} else {
			close(n.ch)
		}
	}
}

func collectNodes(head *waiterNode, fifo bool) []*waiterNode {
	var nodes []*waiterNode
	for n := head; n != nil; n = n.next {
		nodes = append(nodes, n)
	}
	if fifo {
		for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
			nodes[i], nodes[j] = nodes[j], nodes[i]
		}
	}
	return nodes
}

// Reset returns the event to its unset state. Any goroutines already
// unblocked by a prior Set are unaffected; Reset only affects future Await
// calls. Reset on an event with pending (unset) waiters is not meaningful
// and should only be called once IsSet() is true and all waiters observed.
func (e *Event) Reset() {
	e.state.CompareAndSwap(eventSet, nil)
}

// IsSet reports whether the event has been Set.
func (e *Event) IsSet() bool {
	return e.state.Load() == eventSet
}
