// Package engine runs the worker pool that adds barcodes to a reservation.
//
// Each worker owns one browser session: it signs in, opens the reservation
// and then submits barcodes taken from a shared queue until the queue is
// exhausted. Per-item failures are absorbed into the queue and the final
// summary. Fatal failures (credentials refused, reservation missing) stop
// every worker from claiming further items while letting in-flight
// submissions finish.
package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/reservation-bulk-add/pkg/logging"
	"github.com/entrhq/reservation-bulk-add/pkg/queue"
	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 3

var (
	// ErrNoWorkers is returned when every worker stopped while barcodes
	// were still waiting.
	ErrNoWorkers = errors.New("all workers stopped before the queue was drained")

	// ErrInterrupted is returned when the caller cancelled the run.
	ErrInterrupted = errors.New("run interrupted")
)

// DriverFactory opens a new driver, and with it a new browser session, for
// a worker. reservation.Launcher is the production implementation.
type DriverFactory interface {
	Launch(ctx context.Context, worker string) (reservation.Driver, error)
}

// Options configures a pool. It is fixed for the duration of a run.
type Options struct {
	// Workers is the number of parallel browser sessions.
	Workers int

	// MaxAttempts is the per-barcode attempt budget.
	MaxAttempts int

	ReservationID string
	Credentials   reservation.Credentials

	// Logger receives pool and worker logs. Nil discards them.
	Logger *logging.Logger

	// OnEvent receives progress events. May be nil.
	OnEvent EventHandler

	// RunID labels the summary. Empty generates one.
	RunID string
}

// Pool coordinates the workers of a run.
type Pool struct {
	factory DriverFactory
	opts    Options
	log     *logging.Logger
}

// NewPool creates a pool that opens sessions through factory.
func NewPool(factory DriverFactory, opts Options) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("driver factory is required")
	}
	if opts.ReservationID == "" {
		return nil, errors.New("reservation ID is required")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = queue.DefaultMaxAttempts
	}

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	return &Pool{
		factory: factory,
		opts:    opts,
		log:     log,
	}, nil
}

// run is the state shared by the workers of one Run call.
type run struct {
	factory DriverFactory
	opts    Options
	log     *logging.Logger
	queue   *queue.Queue
	agg     *results.Aggregator
	total   int
}

func (r *run) emit(evt Event) {
	if r.opts.OnEvent == nil {
		return
	}
	evt.Total = r.total
	if evt.Counts == (results.Counts{}) {
		evt.Counts = r.agg.Counts()
	}
	r.opts.OnEvent(evt)
}

// Run adds barcodes to the reservation and returns the final summary. The
// summary is always non-nil; the error is the fatal error that aborted the
// run, if any, and is also reflected in the summary's status.
//
// Cancelling ctx stops workers from claiming new items and interrupts
// in-flight submissions.
func (p *Pool) Run(ctx context.Context, barcodes []string) (*results.Summary, error) {
	r := &run{
		factory: p.factory,
		opts:    p.opts,
		log:     p.log,
		queue:   queue.New(barcodes, p.opts.MaxAttempts),
		agg:     results.NewAggregator(p.opts.RunID),
		total:   len(barcodes),
	}

	if len(barcodes) == 0 {
		p.log.Infof("no barcodes to add")
		return r.agg.Summarize(p.opts.ReservationID, nil, nil), nil
	}

	workers := p.opts.Workers
	if workers > len(barcodes) {
		workers = len(barcodes)
	}

	p.log.Infof("adding %d barcodes to reservation %s with %d workers", len(barcodes), p.opts.ReservationID, workers)
	r.emit(Event{Type: EventTypeRunStart})

	g, claimCtx := errgroup.WithContext(ctx)
	for i := 1; i <= workers; i++ {
		w := newWorker(fmt.Sprintf("worker-%d", i), r)
		g.Go(func() error {
			return w.loop(claimCtx, ctx)
		})
	}

	fatal := g.Wait()
	r.queue.Close()

	if fatal == nil && !r.queue.Exhausted() {
		if ctx.Err() != nil {
			fatal = fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		} else {
			fatal = ErrNoWorkers
		}
	}

	summary := r.agg.Summarize(p.opts.ReservationID, r.queue.Snapshot(), fatal)
	if fatal != nil {
		p.log.Errorf("run aborted: %v", fatal)
		r.emit(Event{Type: EventTypeFatal, Err: fatal})
	}
	p.log.Infof("run finished: %s (%d added, %d duplicate, %d failed, %d unfinished)",
		summary.Status, len(summary.Succeeded), len(summary.Duplicate), len(summary.Failed), len(summary.Unfinished()))
	r.emit(Event{Type: EventTypeRunEnd})

	return summary, fatal
}
