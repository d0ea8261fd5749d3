package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/reservation-bulk-add/pkg/engine"
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelQuiet, ParseLevel("quiet"))
	assert.Equal(t, LevelNormal, ParseLevel("normal"))
	assert.Equal(t, LevelVerbose, ParseLevel("verbose"))
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelNormal, ParseLevel("loud"))
}

func TestProgressPrefix(t *testing.T) {
	assert.Equal(t, "[66.7% – 2/3]", progressPrefix(results.Counts{Succeeded: 1, Duplicate: 1}, 3))
	assert.Equal(t, "[100.0% – 3/3]", progressPrefix(results.Counts{Succeeded: 3}, 3))
	assert.Equal(t, "[0.0% – 0/0]", progressPrefix(results.Counts{}, 0))
}

func TestHandleEvent_Normal(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelNormal, "42")

	r.HandleEvent(engine.Event{Type: engine.EventTypeItemAdded, Barcode: "A1", Counts: results.Counts{Succeeded: 1}, Total: 3})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemDuplicate, Barcode: "B2", Counts: results.Counts{Succeeded: 1, Duplicate: 1}, Total: 3})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemRetry, Barcode: "C3", Attempt: 1, Reason: "timeout"})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemFailed, Barcode: "C3", Reason: "retry budget exhausted", Counts: results.Counts{Succeeded: 1, Duplicate: 1, Failed: 1}, Total: 3})

	out := buf.String()
	assert.Contains(t, out, "[33.3% – 1/3] Added A1 to 42.")
	assert.Contains(t, out, "[66.7% – 2/3] B2 was already on 42.")
	assert.Contains(t, out, "Could not add C3: retry budget exhausted")
	assert.NotContains(t, out, "retrying", "retries are verbose-only")
}

func TestHandleEvent_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelVerbose, "42")

	r.HandleEvent(engine.Event{Type: engine.EventTypeWorkerState, Worker: "worker-1", WorkerState: engine.WorkerAuthenticated})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemRetry, Worker: "worker-1", Barcode: "C3", Attempt: 1, Reason: "timeout"})
	r.HandleEvent(engine.Event{Type: engine.EventTypeSessionRebuild, Worker: "worker-1"})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemClaimed, Worker: "worker-1", Barcode: "D4"})

	out := buf.String()
	assert.Contains(t, out, "worker-1: authenticated")
	assert.Contains(t, out, "retrying C3 after attempt 1: timeout")
	assert.Contains(t, out, "starting a new one")
	assert.NotContains(t, out, "[DEBUG]")
}

func TestHandleEvent_QuietShowsOnlyErrors(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelQuiet, "42")

	r.HandleEvent(engine.Event{Type: engine.EventTypeItemAdded, Barcode: "A1", Counts: results.Counts{Succeeded: 1}, Total: 1})
	r.HandleEvent(engine.Event{Type: engine.EventTypeItemFailed, Barcode: "B2", Reason: "rejected", Total: 1})
	r.Infof("hidden")
	r.HandleEvent(engine.Event{Type: engine.EventTypeFatal, Err: errors.New("login: authentication failed")})

	out := buf.String()
	assert.NotContains(t, out, "Added")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "✗ Error: login: authentication failed")
}

func TestSummary_AlwaysPrinted(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelQuiet, "42")

	r.Summary(&results.Summary{
		ReservationID: "42",
		Status:        results.StatusPartialFailure,
		Total:         4,
		Succeeded:     []string{"A1", "B2"},
		Duplicate:     []string{"C3"},
		Failed:        []results.Failure{{Barcode: "D4", Reason: "Unknown asset D4", Attempts: 1}},
		Duration:      3 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "RESERVATION BULK ADD SUMMARY")
	assert.Contains(t, out, "⚠ PARTIAL FAILURE")
	assert.Contains(t, out, "Added: 2/4")
	assert.Contains(t, out, "Already present: 1")
	assert.Contains(t, out, "- D4: Unknown asset D4")
	assert.NotContains(t, out, "Not finished")
}

func TestSummary_Fatal(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelNormal, "42")

	r.Summary(&results.Summary{
		ReservationID: "42",
		Status:        results.StatusFatalError,
		Error:         "worker-1: login: authentication failed",
		Total:         2,
		Succeeded:     []string{},
		NotAttempted:  []string{"A1", "B2"},
	})

	out := buf.String()
	assert.Contains(t, out, "✗ FATAL ERROR")
	assert.Contains(t, out, "Not finished: 2")
	assert.Contains(t, out, "A1, B2")
	assert.Contains(t, out, "Error: worker-1: login: authentication failed")
}

func TestReporter_NoANSIForPlainWriters(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LevelNormal, "42")
	r.Successf("done")
	assert.False(t, strings.Contains(buf.String(), "\x1b["))
}
