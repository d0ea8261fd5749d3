package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/reservation-bulk-add/pkg/logging"
	"github.com/entrhq/reservation-bulk-add/pkg/queue"
	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

// WorkerState is a worker's position in its lifecycle.
type WorkerState string

const (
	WorkerStarting      WorkerState = "starting"
	WorkerAuthenticated WorkerState = "authenticated"
	WorkerRunning       WorkerState = "running"
	WorkerDraining      WorkerState = "draining"
	WorkerStopped       WorkerState = "stopped"
)

// worker owns one browser session for its lifetime and submits barcodes
// taken from the shared queue.
type worker struct {
	name    string
	run     *run
	log     *logging.Logger
	driver  reservation.Driver
	state   WorkerState
	rebuilt bool
}

func newWorker(name string, r *run) *worker {
	return &worker{
		name: name,
		run:  r,
		log:  r.log.With(name),
	}
}

// loop drives the worker until the queue is exhausted, claimCtx is done or
// the session cannot be kept alive.
//
// claimCtx gates setup and every Take; opCtx only bounds in-flight
// submissions, so an item already claimed is finished when a sibling fails.
// The returned error is always fatal for the run.
func (w *worker) loop(claimCtx, opCtx context.Context) error {
	defer w.stop()

	w.setState(WorkerStarting)
	if err := w.establish(claimCtx); err != nil {
		return w.setupFailed(err)
	}

	w.setState(WorkerRunning)
	for {
		item, ok := w.run.queue.Take(claimCtx, w.name)
		if !ok {
			break
		}
		if err := w.process(claimCtx, opCtx, item); err != nil {
			if errors.Is(err, errSessionLost) {
				w.log.Warnf("giving up: %v", err)
				break
			}
			return fmt.Errorf("%s: %w", w.name, err)
		}
	}

	w.setState(WorkerDraining)
	return nil
}

// errSessionLost stops a worker whose replacement session also failed.
var errSessionLost = errors.New("browser session could not be re-established")

// process submits one claimed item and records what happened to it. It
// returns a fatal error, errSessionLost, or nil to keep going.
func (w *worker) process(claimCtx, opCtx context.Context, item queue.Item) error {
	attempt := item.Attempts + 1
	w.emit(Event{Type: EventTypeItemClaimed, Barcode: item.Barcode, Attempt: attempt})
	w.log.Debugf("adding %s (attempt %d/%d)", item.Barcode, attempt, w.run.queue.MaxAttempts())

	err := w.driver.AddBarcode(opCtx, item.Barcode)
	if err == nil {
		w.finish(item, queue.StateSucceeded, "")
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Stopped by the caller, not by the page: the item stays unfinished
		// and is reported as interrupted.
		if releaseErr := w.run.queue.Interrupt(item); releaseErr != nil {
			w.log.Errorf("failed to release %s: %v", item.Barcode, releaseErr)
		}
		return nil
	}

	reason := reasonOf(err)
	switch reservation.KindOf(err) {
	case reservation.KindDuplicate:
		w.finish(item, queue.StateDuplicate, reason)
	case reservation.KindRejected:
		w.log.Warnf("%s rejected: %s", item.Barcode, reason)
		w.finish(item, queue.StateFailed, reason)
	case reservation.KindAuth, reservation.KindNotFound:
		if releaseErr := w.run.queue.Release(item); releaseErr != nil {
			w.log.Errorf("failed to release %s: %v", item.Barcode, releaseErr)
		}
		return err
	case reservation.KindSessionFaulted:
		w.log.Warnf("session faulted while adding %s: %v", item.Barcode, err)
		w.retry(item, reason)
		return w.rebuild(claimCtx)
	default:
		w.log.Debugf("transient failure on %s: %v", item.Barcode, err)
		w.retry(item, reason)
	}
	return nil
}

// establish launches a browser, signs in and opens the reservation.
// Transient and session failures are retried up to the attempt budget.
func (w *worker) establish(ctx context.Context) error {
	attempts := w.run.queue.MaxAttempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.connect(ctx)
		if err == nil {
			return nil
		}
		w.closeDriver()

		if reservation.IsFatal(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		w.log.Warnf("session setup attempt %d/%d failed: %v", attempt, attempts, err)
	}
	return fmt.Errorf("%w: %v", errSessionLost, lastErr)
}

func (w *worker) connect(ctx context.Context) error {
	driver, err := w.run.factory.Launch(ctx, w.name)
	if err != nil {
		return err
	}
	w.driver = driver

	if err := driver.Login(ctx, w.run.opts.Credentials); err != nil {
		return err
	}
	w.setState(WorkerAuthenticated)

	if err := driver.OpenReservation(ctx, w.run.opts.ReservationID); err != nil {
		return err
	}
	w.log.Infof("ready on reservation %s", w.run.opts.ReservationID)
	return nil
}

// rebuild replaces a faulted session. A worker gets one rebuild, but it
// goes through establish, which may launch up to MaxAttempts browsers
// before the worker is given up.
func (w *worker) rebuild(ctx context.Context) error {
	w.closeDriver()
	if w.rebuilt {
		return errSessionLost
	}
	w.rebuilt = true

	w.emit(Event{Type: EventTypeSessionRebuild})
	w.log.Infof("re-establishing browser session")

	w.setState(WorkerStarting)
	if err := w.establish(ctx); err != nil {
		if reservation.IsFatal(err) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		return errSessionLost
	}
	w.setState(WorkerRunning)
	return nil
}

// setupFailed decides whether a failed initial setup aborts the run.
func (w *worker) setupFailed(err error) error {
	switch {
	case reservation.IsFatal(err):
		w.log.Errorf("setup failed: %v", err)
		return fmt.Errorf("%s: %w", w.name, err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		w.log.Debugf("setup cancelled")
		return nil
	default:
		w.log.Errorf("setup failed, worker stopping: %v", err)
		return nil
	}
}

// finish reports a terminal state for item and records the outcome.
func (w *worker) finish(item queue.Item, state queue.State, reason string) {
	done, err := w.run.queue.ReportDone(item, state, reason)
	if err != nil {
		w.log.Errorf("failed to report %s: %v", item.Barcode, err)
		return
	}
	w.record(done)
}

// retry charges a failed attempt and puts item back in the queue, or
// records it as failed when the budget is spent.
func (w *worker) retry(item queue.Item, reason string) {
	next, requeued, err := w.run.queue.Requeue(item, reason)
	if err != nil {
		w.log.Errorf("failed to requeue %s: %v", item.Barcode, err)
		return
	}
	if requeued {
		w.emit(Event{Type: EventTypeItemRetry, Barcode: next.Barcode, Attempt: next.Attempts, Reason: reason})
		return
	}
	w.log.Warnf("%s failed after %d attempts: %s", next.Barcode, next.Attempts, reason)
	w.record(next)
}

func (w *worker) record(item queue.Item) {
	counts := w.run.agg.Record(results.Outcome{
		ItemID:   item.ID,
		Barcode:  item.Barcode,
		Status:   item.State,
		Attempts: item.Attempts,
		Error:    item.Reason,
		Worker:   w.name,
	})

	evt := Event{Barcode: item.Barcode, Attempt: item.Attempts, Reason: item.Reason, Counts: counts}
	switch item.State {
	case queue.StateSucceeded:
		evt.Type = EventTypeItemAdded
	case queue.StateDuplicate:
		evt.Type = EventTypeItemDuplicate
	default:
		evt.Type = EventTypeItemFailed
	}
	w.emit(evt)
}

func (w *worker) setState(state WorkerState) {
	if w.state == state {
		return
	}
	w.state = state
	w.log.Debugf("state %s", state)
	w.emit(Event{Type: EventTypeWorkerState, WorkerState: state})
}

func (w *worker) emit(evt Event) {
	evt.Worker = w.name
	w.run.emit(evt)
}

func (w *worker) closeDriver() {
	if w.driver == nil {
		return
	}
	if err := w.driver.Close(); err != nil {
		w.log.Warnf("failed to close browser: %v", err)
	}
	w.driver = nil
}

func (w *worker) stop() {
	w.closeDriver()
	w.setState(WorkerStopped)
}

func reasonOf(err error) string {
	var rerr *reservation.Error
	if errors.As(err, &rerr) {
		return rerr.Reason()
	}
	return err.Error()
}
