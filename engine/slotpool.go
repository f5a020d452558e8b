package engine

import (
	"context"
	"fmt"
	"sync"
)

// InvariantError reports a broken concurrency contract. It is raised with
// panic by the pool and turned into a fatal run error by Dispatch.
type InvariantError struct {
	Op     string
	SlotID int
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s slot %d: %s", e.Op, e.SlotID, e.Detail)
}

// slotHandle tracks usage of one execution slot.
type slotHandle struct {
	id       int
	busy     bool
	uses     int
	failures int
}

// SlotStats is a point-in-time view of one slot.
type SlotStats struct {
	ID       int
	Busy     bool
	Uses     int
	Failures int
}

// SlotPool hands out a fixed set of slot identifiers 0..capacity-1.
// Acquire blocks on a channel of idle identifiers, so waiters are served in
// arrival order by the runtime and no one polls.
type SlotPool struct {
	idle chan int

	mu    sync.Mutex
	slots []*slotHandle
}

// NewSlotPool creates a pool with n slots, all idle.
func NewSlotPool(n int) *SlotPool {
	if n < 1 {
		n = 1
	}
	p := &SlotPool{
		idle:  make(chan int, n),
		slots: make([]*slotHandle, n),
	}
	for i := 0; i < n; i++ {
		p.slots[i] = &slotHandle{id: i}
		p.idle <- i
	}
	return p
}

// Acquire blocks until a slot is idle or ctx is done.
func (p *SlotPool) Acquire(ctx context.Context) (int, error) {
	select {
	case id := <-p.idle:
		p.mu.Lock()
		h := p.slots[id]
		if h.busy {
			p.mu.Unlock()
			panic(&InvariantError{Op: "acquire", SlotID: id, Detail: "idle slot already held"})
		}
		h.busy = true
		h.uses++
		p.mu.Unlock()
		return id, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Release returns a held slot to the pool. Releasing a slot that is not
// held, or an unknown identifier, panics with *InvariantError.
func (p *SlotPool) Release(id int) {
	p.mu.Lock()
	if id < 0 || id >= len(p.slots) {
		p.mu.Unlock()
		panic(&InvariantError{Op: "release", SlotID: id, Detail: "unknown slot"})
	}
	h := p.slots[id]
	if !h.busy {
		p.mu.Unlock()
		panic(&InvariantError{Op: "release", SlotID: id, Detail: "slot not held"})
	}
	h.busy = false
	p.mu.Unlock()
	p.idle <- id
}

// RecordFailure counts a failed task on a slot.
func (p *SlotPool) RecordFailure(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id >= 0 && id < len(p.slots) {
		p.slots[id].failures++
	}
}

// Capacity returns the fixed number of slots.
func (p *SlotPool) Capacity() int {
	return len(p.slots)
}

// InUse returns the number of slots currently held.
func (p *SlotPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.slots {
		if h.busy {
			n++
		}
	}
	return n
}

// Stats returns per-slot usage counters.
func (p *SlotPool) Stats() []SlotStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SlotStats, len(p.slots))
	for i, h := range p.slots {
		out[i] = SlotStats{ID: h.id, Busy: h.busy, Uses: h.uses, Failures: h.failures}
	}
	return out
}
