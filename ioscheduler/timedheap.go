package ioscheduler

import (
	"container/heap"
	"sync"
	"time"
)

// timedEvent is one entry in the timed-events min-heap: a deadline paired
// with the pollInfo waiting on it. Duplicate deadlines are permitted.
type timedEvent struct {
	deadline time.Time
	pi       *pollInfo
	index    int // heap index, maintained by container/heap callbacks
}

// timedEventHeap is a container/heap-backed min-heap ordered by deadline —
// the idiomatic standard-library priority queue; no third-party priority
// queue appears anywhere in the retrieved pack, so there is nothing else to
// reach for here.
type timedEventHeap []*timedEvent

func (h timedEventHeap) Len() int           { return len(h) }
func (h timedEventHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timedEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
	h[i].pi.timerIndex = i
	h[j].pi.timerIndex = j
}

func (h *timedEventHeap) Push(x any) {
	e := x.(*timedEvent)
	e.index = len(*h)
	e.pi.timerIndex = e.index
	*h = append(*h, e)
}

func (h *timedEventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	e.pi.timerIndex = -1
	*h = old[:n-1]
	return e
}

// timedEvents wraps timedEventHeap with its guarding mutex, matching §3's
// "Protected by a mutex; mutations from any thread."
type timedEvents struct {
	mu sync.Mutex
	h  timedEventHeap
}

func newTimedEvents() *timedEvents {
	return &timedEvents{}
}

// insert adds pi with the given deadline and reports whether pi became the
// new earliest entry (the caller must re-arm the OS timer in that case).
func (t *timedEvents) insert(pi *pollInfo, deadline time.Time) (becameHead bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &timedEvent{deadline: deadline, pi: pi}
	heap.Push(&t.h, e)
	return e.index == 0
}

// remove deletes the entry at index idx, if still present, and reports
// whether the new head deadline changed (caller must re-arm).
func (t *timedEvents) remove(idx int) (newHead time.Time, ok bool, headChanged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.h) {
		return time.Time{}, false, false
	}
	wasHead := idx == 0
	heap.Remove(&t.h, idx)
	if len(t.h) == 0 {
		return time.Time{}, false, wasHead
	}
	return t.h[0].deadline, true, wasHead
}

// popExpired removes and returns every entry whose deadline is <= now, and
// the new head deadline (if any remain).
func (t *timedEvents) popExpired(now time.Time) (expired []*timedEvent, newHead time.Time, hasHead bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.h) > 0 && !t.h[0].deadline.After(now) {
		e := heap.Pop(&t.h).(*timedEvent)
		expired = append(expired, e)
	}
	if len(t.h) > 0 {
		return expired, t.h[0].deadline, true
	}
	return expired, time.Time{}, false
}

func (t *timedEvents) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.h)
}
