package ioscheduler

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kestrelio/coro"
)

// taskSlot holds one detached task owned by the scheduler, tagged with a
// uuid purely so a failing detached task's log line can be correlated back
// to a specific schedule call — addressing itself stays index-based, per
// the data model.
type taskSlot struct {
	id   uuid.UUID
	task *coro.Task[struct{}]
	busy bool
}

// taskContainer is the slot vector + free-index queue + pending-delete list
// backing detached ("fire and forget") tasks, grown geometrically when
// every slot is occupied — adapted from the teacher's pool/fixed.go
// available/all-slice slot-reuse shape, here applied to task slots instead
// of pooled workers. Deliberately unexported: only Scheduler.ScheduleTask
// and Scheduler.GarbageCollect touch it.
type taskContainer struct {
	mu      sync.Mutex
	slots   []taskSlot
	free    []int
	pending []int
}

func newTaskContainer() *taskContainer {
	return &taskContainer{}
}

func (c *taskContainer) put(t *coro.Task[struct{}]) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.free) == 0 {
		c.grow()
	}
	idx := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.slots[idx] = taskSlot{id: uuid.New(), task: t, busy: true}
	return idx
}

// grow doubles the backing slice (starting from 8), adding the new indices
// to the free list.
func (c *taskContainer) grow() {
	old := len(c.slots)
	newCap := old * 2
	if newCap == 0 {
		newCap = 8
	}
	grown := make([]taskSlot, newCap)
	copy(grown, c.slots)
	c.slots = grown
	for i := newCap - 1; i >= old; i-- {
		c.free = append(c.free, i)
	}
}

// markPendingDelete records idx as ready for reclamation once garbage
// collected.
func (c *taskContainer) markPendingDelete(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, idx)
}

// reclaim walks the pending-delete list and returns every slot that is
// ready (its task has completed), freeing its index for reuse.
func (c *taskContainer) reclaim() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []int
	reclaimed := 0
	for _, idx := range c.pending {
		if c.slots[idx].task.IsReady() {
			c.slots[idx] = taskSlot{}
			c.free = append(c.free, idx)
			reclaimed++
		} else {
			remaining = append(remaining, idx)
		}
	}
	c.pending = remaining
	return reclaimed
}

func (c *taskContainer) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s.busy {
			n++
		}
	}
	return n
}
