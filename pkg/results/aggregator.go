// Package results accumulates per-barcode outcomes from all workers and turns
// them into the final run summary.
package results

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/reservation-bulk-add/pkg/queue"
)

// Status is the overall result of a run.
type Status string

const (
	// StatusSuccess means every barcode was added or was already present.
	StatusSuccess Status = "success"
	// StatusPartialFailure means some barcodes could not be added.
	StatusPartialFailure Status = "partial_failure"
	// StatusFatalError means the run was aborted by a setup failure.
	StatusFatalError Status = "fatal_error"
)

// ExitCode maps a status to the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartialFailure:
		return 2
	default:
		return 1
	}
}

// Outcome is the terminal result of one barcode item. Outcomes are
// append-only.
type Outcome struct {
	ItemID   int         `json:"item_id"`
	Barcode  string      `json:"barcode"`
	Status   queue.State `json:"status"`
	Attempts int         `json:"attempts"`
	Error    string      `json:"error,omitempty"`
	Worker   string      `json:"worker,omitempty"`
	At       time.Time   `json:"at"`
}

// Counts is a running tally of recorded outcomes.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// Done returns the number of items that reached a terminal state.
func (c Counts) Done() int {
	return c.Succeeded + c.Duplicate + c.Failed
}

// Aggregator collects outcomes from concurrent workers.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	outcomes  []Outcome
	counts    Counts
}

// NewAggregator creates an empty aggregator and stamps the run start time.
// An empty runID gets a generated one.
func NewAggregator(runID string) *Aggregator {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Aggregator{
		runID:     runID,
		startedAt: time.Now(),
	}
}

// RunID identifies this run in logs and artifacts.
func (a *Aggregator) RunID() string {
	return a.runID
}

// Record appends an outcome and returns the updated counts.
func (a *Aggregator) Record(o Outcome) Counts {
	if o.At.IsZero() {
		o.At = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, o)
	switch o.Status {
	case queue.StateSucceeded:
		a.counts.Succeeded++
	case queue.StateDuplicate:
		a.counts.Duplicate++
	default:
		a.counts.Failed++
	}
	return a.counts
}

// Counts returns the current tally.
func (a *Aggregator) Counts() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// Outcomes returns a copy of every recorded outcome in arrival order.
func (a *Aggregator) Outcomes() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Outcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

// Failure is a barcode that could not be added.
type Failure struct {
	Barcode  string `json:"barcode"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// Summary is the final report of a run. Succeeded, Duplicate, Failed,
// NotAttempted and Interrupted are pairwise disjoint and together cover
// every input row.
type Summary struct {
	RunID         string        `json:"run_id"`
	ReservationID string        `json:"reservation_id"`
	Status        Status        `json:"status"`
	Error         string        `json:"error,omitempty"`
	Total         int           `json:"total"`
	Succeeded     []string      `json:"succeeded"`
	Duplicate     []string      `json:"duplicate"`
	Failed        []Failure     `json:"failed"`
	NotAttempted  []string      `json:"not_attempted,omitempty"`
	Interrupted   []string      `json:"interrupted,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Duration      time.Duration `json:"duration"`
}

// Unfinished returns the barcodes that never reached a terminal state.
func (s *Summary) Unfinished() []string {
	out := make([]string, 0, len(s.NotAttempted)+len(s.Interrupted))
	out = append(out, s.NotAttempted...)
	return append(out, s.Interrupted...)
}

// Summarize builds the final summary from the recorded outcomes and the
// queue's final item list. fatal is the run-aborting error, if any.
func (a *Aggregator) Summarize(reservationID string, items []queue.Item, fatal error) *Summary {
	a.mu.Lock()
	outcomes := make(map[int]Outcome, len(a.outcomes))
	for _, o := range a.outcomes {
		outcomes[o.ItemID] = o
	}
	a.mu.Unlock()

	finished := time.Now()
	s := &Summary{
		RunID:         a.runID,
		ReservationID: reservationID,
		Total:         len(items),
		Succeeded:     []string{},
		Duplicate:     []string{},
		Failed:        []Failure{},
		StartedAt:     a.startedAt,
		FinishedAt:    finished,
		Duration:      finished.Sub(a.startedAt),
	}

	ordered := make([]queue.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, item := range ordered {
		o, done := outcomes[item.ID]
		if !done {
			if item.Attempts == 0 && item.Reason != queue.ReasonInterrupted {
				s.NotAttempted = append(s.NotAttempted, item.Barcode)
			} else {
				s.Interrupted = append(s.Interrupted, item.Barcode)
			}
			continue
		}
		switch o.Status {
		case queue.StateSucceeded:
			s.Succeeded = append(s.Succeeded, o.Barcode)
		case queue.StateDuplicate:
			s.Duplicate = append(s.Duplicate, o.Barcode)
		default:
			s.Failed = append(s.Failed, Failure{Barcode: o.Barcode, Reason: o.Error, Attempts: o.Attempts})
		}
	}

	switch {
	case fatal != nil:
		s.Status = StatusFatalError
		s.Error = fatal.Error()
	case len(s.Failed) > 0 || len(s.NotAttempted) > 0 || len(s.Interrupted) > 0:
		s.Status = StatusPartialFailure
	default:
		s.Status = StatusSuccess
	}
	return s
}
