// Package queue holds the barcodes still to be submitted and hands them to
// workers one at a time.
//
// A Queue is the only structure shared between workers. Every state change
// happens under a single mutex, and waiters are woken by closing a
// broadcast channel that is replaced on each change.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxAttempts is the per-item attempt budget used when none is given.
const DefaultMaxAttempts = 3

// Queue is a thread-safe work queue of barcode items.
type Queue struct {
	mu          sync.Mutex
	items       []Item
	ready       []int // FIFO of claimable item IDs
	inProgress  int
	maxAttempts int
	closed      bool
	changed     chan struct{}
}

// New creates a queue holding one pending item per barcode, in input order.
// maxAttempts below 1 falls back to DefaultMaxAttempts.
func New(barcodes []string, maxAttempts int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now()
	q := &Queue{
		items:       make([]Item, len(barcodes)),
		ready:       make([]int, 0, len(barcodes)),
		maxAttempts: maxAttempts,
		changed:     make(chan struct{}),
	}
	for i, barcode := range barcodes {
		q.items[i] = Item{ID: i, Barcode: barcode, State: StatePending, UpdatedAt: now}
		q.ready = append(q.ready, i)
	}
	return q
}

// MaxAttempts returns the per-item attempt budget.
func (q *Queue) MaxAttempts() int {
	return q.maxAttempts
}

// Len returns the number of items in the queue, terminal or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take claims the next claimable item for worker and marks it in progress.
//
// When nothing is claimable but other workers still hold items, Take blocks
// until one of them is requeued, released or finished. It returns false once
// every item is terminal, when the queue is closed, or when ctx is done.
func (q *Queue) Take(ctx context.Context, worker string) (Item, bool) {
	for {
		if ctx.Err() != nil {
			return Item{}, false
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Item{}, false
		}
		if item := q.nextLocked(); item != nil {
			item.State = StateInProgress
			item.Worker = worker
			item.UpdatedAt = time.Now()
			q.inProgress++
			claimed := *item
			q.notifyLocked()
			q.mu.Unlock()
			return claimed, true
		}
		if q.inProgress == 0 {
			q.mu.Unlock()
			return Item{}, false
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item{}, false
		case <-wait:
		}
	}
}

// nextLocked pops the next claimable item off the ready list, or returns
// nil when there is none.
func (q *Queue) nextLocked() *Item {
	for len(q.ready) > 0 {
		id := q.ready[0]
		q.ready = q.ready[1:]
		if item := &q.items[id]; item.State.Claimable() {
			return item
		}
	}
	return nil
}

// Requeue records a failed attempt on an in-progress item and makes it
// claimable again. When the attempt budget is spent the item is marked
// failed with ReasonBudgetExhausted instead, and Requeue returns false.
func (q *Queue) Requeue(item Item, reason string) (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	held, err := q.heldLocked(item)
	if err != nil {
		return Item{}, false, err
	}

	held.Attempts++
	held.Reason = reason
	held.UpdatedAt = time.Now()
	q.inProgress--

	if held.Attempts >= q.maxAttempts {
		held.State = StateFailed
		held.Reason = ReasonBudgetExhausted
		q.notifyLocked()
		return *held, false, nil
	}

	held.State = StateRetrying
	q.ready = append(q.ready, held.ID)
	q.notifyLocked()
	return *held, true, nil
}

// ReportDone records a terminal state for an in-progress item. The attempt
// that produced the result is counted.
func (q *Queue) ReportDone(item Item, state State, reason string) (Item, error) {
	if !state.Terminal() {
		return Item{}, fmt.Errorf("state %q is not terminal", state)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	held, err := q.heldLocked(item)
	if err != nil {
		return Item{}, err
	}

	held.Attempts++
	held.State = state
	held.Reason = reason
	held.UpdatedAt = time.Now()
	q.inProgress--
	q.notifyLocked()
	return *held, nil
}

// Release hands an in-progress item back without charging an attempt. It is
// used when a worker stops before it could submit the item.
func (q *Queue) Release(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	held, err := q.heldLocked(item)
	if err != nil {
		return err
	}
	q.releaseLocked(held)
	return nil
}

// Interrupt hands back an item whose submission the caller cut short. Like
// Release it charges no attempt, but the item keeps ReasonInterrupted so a
// summary can tell it apart from work that was never started.
func (q *Queue) Interrupt(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	held, err := q.heldLocked(item)
	if err != nil {
		return err
	}
	held.Reason = ReasonInterrupted
	q.releaseLocked(held)
	return nil
}

func (q *Queue) releaseLocked(held *Item) {
	if held.Attempts > 0 {
		held.State = StateRetrying
	} else {
		held.State = StatePending
	}
	held.Worker = ""
	held.UpdatedAt = time.Now()
	q.inProgress--
	// Released items go to the front so they are not starved behind retries.
	q.ready = append([]int{held.ID}, q.ready...)
	q.notifyLocked()
}

// Close stops the queue: blocked and future Take calls return false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notifyLocked()
}

// Snapshot returns a copy of every item in input order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// InProgress returns the number of items currently held by workers.
func (q *Queue) InProgress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inProgress
}

// Remaining returns the number of items that are not yet terminal.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for i := range q.items {
		if !q.items[i].State.Terminal() {
			n++
		}
	}
	return n
}

// Exhausted reports whether every item has reached a terminal state.
func (q *Queue) Exhausted() bool {
	return q.Remaining() == 0
}

func (q *Queue) heldLocked(item Item) (*Item, error) {
	if item.ID < 0 || item.ID >= len(q.items) {
		return nil, fmt.Errorf("unknown item %d", item.ID)
	}
	held := &q.items[item.ID]
	if held.State != StateInProgress {
		return nil, fmt.Errorf("item %d (%s) is %s, not in progress", held.ID, held.Barcode, held.State)
	}
	if item.Worker != "" && held.Worker != item.Worker {
		return nil, fmt.Errorf("item %d (%s) is held by %s, not %s", held.ID, held.Barcode, held.Worker, item.Worker)
	}
	return held, nil
}

// notifyLocked wakes every goroutine blocked in Take.
func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
