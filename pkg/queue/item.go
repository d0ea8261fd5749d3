package queue

import "time"

// State is the lifecycle state of a barcode item.
type State string

const (
	// StatePending means the item has never been claimed.
	StatePending State = "pending"
	// StateInProgress means exactly one worker currently holds the item.
	StateInProgress State = "in_progress"
	// StateRetrying means a previous attempt failed transiently and the
	// item is waiting to be claimed again.
	StateRetrying State = "retrying"
	// StateSucceeded means the barcode was added to the reservation.
	StateSucceeded State = "succeeded"
	// StateDuplicate means the barcode was already on the reservation.
	StateDuplicate State = "duplicate"
	// StateFailed means the item failed permanently.
	StateFailed State = "failed"
)

// Terminal reports whether no further work will be done for the item.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateDuplicate, StateFailed:
		return true
	default:
		return false
	}
}

// Claimable reports whether Take may hand the item to a worker.
func (s State) Claimable() bool {
	return s == StatePending || s == StateRetrying
}

// ReasonBudgetExhausted is recorded on items whose transient failures
// used up every allowed attempt.
const ReasonBudgetExhausted = "retry budget exhausted"

// ReasonInterrupted is recorded on items whose submission was stopped by
// the caller cancelling the run.
const ReasonInterrupted = "interrupted"

// Item is one barcode to attach to the reservation. Values returned by
// the queue are snapshots; all mutation goes through Queue methods.
type Item struct {
	// ID is the zero-based position of the barcode in the input.
	ID int `json:"id"`

	// Barcode is the asset identifier.
	Barcode string `json:"barcode"`

	State State `json:"state"`

	// Attempts counts submissions that finished, successfully or not.
	Attempts int `json:"attempts"`

	// Reason holds the last failure detail, if any.
	Reason string `json:"reason,omitempty"`

	// Worker names the worker holding or last holding the item.
	Worker string `json:"worker,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
