package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is one unit of work run while holding an execution slot.
// index is the position of item in the dispatched list.
type Task[T, R any] func(ctx context.Context, slot, index int, item T) (R, error)

// Outcome is the result of one task. Err is non-nil when the task failed,
// in which case Value is the zero value.
type Outcome[R any] struct {
	Value R
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// ProgressFunc receives the number of finished tasks, the total, and the
// running aggregate computed by Hooks.Count over successful values.
type ProgressFunc func(completed, total, aggregate int)

// Hooks are optional observers of a dispatch.
type Hooks[R any] struct {
	// Progress is called once per finished task, in completion order, from a
	// goroutine separate from the workers. A slow callback never delays a slot.
	Progress ProgressFunc

	// Count maps a successful value to its contribution to the aggregate.
	// When nil every success counts as 1.
	Count func(R) int
}

type progressEvent struct {
	completed, aggregate int
}

// Dispatch runs task over items with at most pool.Capacity() tasks in flight.
// Tasks are started in input order; outcomes[i] always belongs to items[i].
//
// A failing or panicking task only affects its own outcome. A task (or the
// pool) raising *InvariantError aborts the dispatch: no further tasks start,
// in-flight tasks are cancelled, and the error is returned.
func Dispatch[T, R any](ctx context.Context, pool *SlotPool, items []T, task Task[T, R], hooks Hooks[R]) ([]Outcome[R], error) {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		fatal     error
		completed int
		aggregate int
	)

	events := make(chan progressEvent, len(items))
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range events {
			if hooks.Progress != nil {
				hooks.Progress(ev.completed, len(items), ev.aggregate)
			}
		}
	}()

	setFatal := func(err error) {
		mu.Lock()
		if fatal == nil {
			fatal = err
			slog.Error("dispatch: invariant violation, aborting", "error", err)
		}
		mu.Unlock()
		cancel()
	}

	finish := func(i int, value R, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[i] = Outcome[R]{Value: value, Err: err}
		completed++
		if err == nil {
			if hooks.Count != nil {
				aggregate += hooks.Count(value)
			} else {
				aggregate++
			}
		}
		events <- progressEvent{completed: completed, aggregate: aggregate}
	}

	started := 0
	for i, item := range items {
		slot, err := acquire(runCtx, pool)
		if err != nil {
			var ie *InvariantError
			if errors.As(err, &ie) {
				setFatal(err)
			}
			break
		}
		if runCtx.Err() != nil {
			// Aborted while waiting; the slot must not start another task.
			if relErr := release(pool, slot); relErr != nil {
				setFatal(relErr)
			}
			break
		}
		started++

		wg.Add(1)
		go func(i, slot int, item T) {
			defer wg.Done()

			value, err := runTask(runCtx, task, slot, i, item)
			// Cancel before the slot goes back, so the loop sees the abort.
			var ie *InvariantError
			if errors.As(err, &ie) {
				setFatal(err)
			}
			if relErr := release(pool, slot); relErr != nil {
				setFatal(relErr)
			}
			if err != nil {
				var zero R
				value = zero
				pool.RecordFailure(slot)
				slog.Debug("dispatch: task failed", "index", i, "slot", slot, "error", err)
			}
			finish(i, value, err)
		}(i, slot, item)
	}

	wg.Wait()
	close(events)
	<-progressDone

	// Items that never got a slot.
	notStarted := runCtx.Err()
	if notStarted == nil {
		notStarted = context.Canceled
	}
	for i := started; i < len(items); i++ {
		outcomes[i].Err = notStarted
	}

	mu.Lock()
	defer mu.Unlock()
	if fatal != nil {
		return outcomes, fatal
	}
	return outcomes, nil
}

// runTask calls task and converts a panic into an error. An *InvariantError
// panic is returned unwrapped so the caller can treat it as fatal.
func runTask[T, R any](ctx context.Context, task Task[T, R], slot, index int, item T) (value R, err error) {
	defer func() {
		if p := recover(); p != nil {
			if ie, ok := p.(*InvariantError); ok {
				err = ie
				return
			}
			err = fmt.Errorf("task %d panicked: %v", index, p)
		}
	}()
	return task(ctx, slot, index, item)
}

func acquire(ctx context.Context, pool *SlotPool) (slot int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = asInvariant(p)
		}
	}()
	return pool.Acquire(ctx)
}

func release(pool *SlotPool, slot int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = asInvariant(p)
		}
	}()
	pool.Release(slot)
	return nil
}

func asInvariant(p any) error {
	if ie, ok := p.(*InvariantError); ok {
		return ie
	}
	return &InvariantError{Op: "pool", SlotID: -1, Detail: fmt.Sprint(p)}
}
