// Package console prints run progress and the final summary for a person
// watching the terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/reservation-bulk-add/pkg/engine"
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

// Level represents the console verbosity level
type Level int

const (
	// LevelQuiet shows only errors and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows one progress line per barcode (default)
	LevelNormal
	// LevelVerbose adds retries and worker state changes
	LevelVerbose
	// LevelDebug shows every engine event
	LevelDebug
)

// ParseLevel converts a verbosity name to a Level. Unknown names are normal.
func ParseLevel(level string) Level {
	switch level {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

// Color palette
var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FFD59E")
	mutedGray  = lipgloss.Color("#6B7280")
)

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Foreground(salmonPink).Bold(true),
		success: r.NewStyle().Foreground(mintGreen).Bold(true),
		info:    r.NewStyle().Foreground(salmonPink),
		warning: r.NewStyle().Foreground(amber),
		err:     r.NewStyle().Foreground(salmonPink).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1),
	}
}

// Reporter writes human-readable progress. It is safe for concurrent use,
// so HandleEvent can be passed straight to the engine.
type Reporter struct {
	mu            sync.Mutex
	level         Level
	writer        io.Writer
	styles        styles
	reservationID string
	bar           *ProgressBar
}

// NewReporter creates a reporter writing to w at the given level.
func NewReporter(w io.Writer, level Level, reservationID string) *Reporter {
	return &Reporter{
		level:         level,
		writer:        w,
		styles:        newStyles(lipgloss.NewRenderer(w)),
		reservationID: reservationID,
	}
}

// AttachProgressBar routes progress through bar instead of printing one
// line per barcode. Messages still print above the bar.
func (r *Reporter) AttachProgressBar(bar *ProgressBar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bar = bar
}

func (r *Reporter) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil && r.bar.Running() {
		r.bar.Println(line)
		return
	}
	fmt.Fprintln(r.writer, line)
}

// Header prints a prominent header message
func (r *Reporter) Header(message string) {
	if r.level >= LevelNormal {
		r.println(r.styles.header.Render(message))
	}
}

// Successf prints a success message with checkmark
func (r *Reporter) Successf(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		r.println(r.styles.success.Render("✓ " + fmt.Sprintf(format, args...)))
	}
}

// Infof prints an informational message
func (r *Reporter) Infof(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		r.println(r.styles.info.Render(fmt.Sprintf(format, args...)))
	}
}

// Warningf prints a warning message
func (r *Reporter) Warningf(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		r.println(r.styles.warning.Render("⚠ Warning: " + fmt.Sprintf(format, args...)))
	}
}

// Errorf prints an error message. Errors are shown at every level.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	r.println(r.styles.err.Render("✗ Error: " + fmt.Sprintf(format, args...)))
}

// Verbosef prints detailed information (only in verbose mode)
func (r *Reporter) Verbosef(format string, args ...interface{}) {
	if r.level >= LevelVerbose {
		r.println(r.styles.muted.Render("→ " + fmt.Sprintf(format, args...)))
	}
}

// Debugf prints debug information (only in debug mode)
func (r *Reporter) Debugf(format string, args ...interface{}) {
	if r.level >= LevelDebug {
		r.println(r.styles.muted.Render("[DEBUG] " + fmt.Sprintf(format, args...)))
	}
}

// HandleEvent renders one engine event.
func (r *Reporter) HandleEvent(evt engine.Event) {
	r.mu.Lock()
	bar := r.bar
	r.mu.Unlock()
	if bar != nil {
		bar.Update(evt.Counts, evt.Total)
	}

	switch evt.Type {
	case engine.EventTypeRunStart:
		r.Debugf("run started with %d barcodes", evt.Total)
	case engine.EventTypeWorkerState:
		r.Verbosef("%s: %s", evt.Worker, evt.WorkerState)
	case engine.EventTypeItemClaimed:
		r.Debugf("%s: adding %s (attempt %d)", evt.Worker, evt.Barcode, evt.Attempt)
	case engine.EventTypeItemAdded:
		if bar == nil {
			r.Infof("%s Added %s to %s.", progressPrefix(evt.Counts, evt.Total), evt.Barcode, r.reservationID)
		}
	case engine.EventTypeItemDuplicate:
		if bar == nil {
			r.Infof("%s %s was already on %s.", progressPrefix(evt.Counts, evt.Total), evt.Barcode, r.reservationID)
		}
	case engine.EventTypeItemRetry:
		r.Verbosef("%s: retrying %s after attempt %d: %s", evt.Worker, evt.Barcode, evt.Attempt, evt.Reason)
	case engine.EventTypeItemFailed:
		r.Warningf("%s Could not add %s: %s", progressPrefix(evt.Counts, evt.Total), evt.Barcode, evt.Reason)
	case engine.EventTypeSessionRebuild:
		r.Verbosef("%s: browser session faulted, starting a new one", evt.Worker)
	case engine.EventTypeFatal:
		r.Errorf("%v", evt.Err)
	case engine.EventTypeRunEnd:
		r.Debugf("run ended")
	}
}

// progressPrefix formats "[66.7% – 2/3]" for the given tally.
func progressPrefix(counts results.Counts, total int) string {
	done := counts.Done()
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return fmt.Sprintf("[%.1f%% – %d/%d]", pct, done, total)
}

// Summary prints the final run summary. It is printed at every level.
func (r *Reporter) Summary(s *results.Summary) {
	var b strings.Builder

	b.WriteString(r.styles.header.Render("RESERVATION BULK ADD SUMMARY"))
	b.WriteString("\n\n")

	b.WriteString("Status: ")
	switch s.Status {
	case results.StatusSuccess:
		b.WriteString(r.styles.success.Render("✓ SUCCESS"))
	case results.StatusPartialFailure:
		b.WriteString(r.styles.warning.Render("⚠ PARTIAL FAILURE"))
	default:
		b.WriteString(r.styles.err.Render("✗ FATAL ERROR"))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Reservation: %s\n", s.ReservationID)
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Added: %d/%d\n", len(s.Succeeded), s.Total)
	if len(s.Duplicate) > 0 {
		fmt.Fprintf(&b, "Already present: %d\n", len(s.Duplicate))
	}
	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "Failed: %d\n", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Barcode, f.Reason)
		}
	}
	if unfinished := s.Unfinished(); len(unfinished) > 0 {
		fmt.Fprintf(&b, "Not finished: %d\n", len(unfinished))
		if r.level >= LevelVerbose || len(unfinished) <= 10 {
			fmt.Fprintf(&b, "  %s\n", strings.Join(unfinished, ", "))
		}
	}
	if s.Error != "" {
		b.WriteString("\n")
		b.WriteString(r.styles.err.Render("Error: " + s.Error))
		b.WriteString("\n")
	}

	r.println(r.styles.box.Render(strings.TrimRight(b.String(), "\n")))
}
