package engine

import (
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

// EventType defines the type of event emitted by the pool.
type EventType string

const (
	EventTypeRunStart       EventType = "run_start"       // EventTypeRunStart indicates the pool is starting its workers.
	EventTypeWorkerState    EventType = "worker_state"    // EventTypeWorkerState indicates a worker changed lifecycle state.
	EventTypeItemClaimed    EventType = "item_claimed"    // EventTypeItemClaimed indicates a worker took a barcode from the queue.
	EventTypeItemAdded      EventType = "item_added"      // EventTypeItemAdded indicates a barcode was added to the reservation.
	EventTypeItemDuplicate  EventType = "item_duplicate"  // EventTypeItemDuplicate indicates a barcode was already on the reservation.
	EventTypeItemRetry      EventType = "item_retry"      // EventTypeItemRetry indicates a failed attempt that was put back in the queue.
	EventTypeItemFailed     EventType = "item_failed"     // EventTypeItemFailed indicates a barcode reached the failed state.
	EventTypeSessionRebuild EventType = "session_rebuild" // EventTypeSessionRebuild indicates a worker is replacing a faulted browser session.
	EventTypeFatal          EventType = "fatal"           // EventTypeFatal indicates a run-aborting error.
	EventTypeRunEnd         EventType = "run_end"         // EventTypeRunEnd indicates every worker has stopped.
)

// Event is a progress notification from the pool. Handlers are called from
// worker goroutines and must be safe for concurrent use.
type Event struct {
	Type EventType

	// Worker is the emitting worker's name. Empty for run-level events.
	Worker string

	// WorkerState is set for worker_state events.
	WorkerState WorkerState

	// Barcode and Attempt describe the item for item events.
	Barcode string
	Attempt int

	// Reason is the failure or retry reason, if any.
	Reason string

	// Counts is the tally after this event; Total is the number of barcodes.
	Counts results.Counts
	Total  int

	// Err is set for fatal events.
	Err error
}

// EventHandler receives pool events.
type EventHandler func(Event)
