package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

// progressMsg carries a new tally to the bar.
type progressMsg struct {
	counts results.Counts
	total  int
}

// stopMsg ends the program.
type stopMsg struct{}

// progressModel is the bubbletea model behind ProgressBar.
type progressModel struct {
	bar    progress.Model
	counts results.Counts
	total  int
}

func newProgressModel(total int) progressModel {
	return progressModel{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		total: total,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.counts = msg.counts
		if msg.total > 0 {
			m.total = msg.total
		}
		return m, nil
	case tea.WindowSizeMsg:
		width := msg.Width - 30
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.counts.Done()) / float64(m.total)
}

func (m progressModel) View() string {
	return fmt.Sprintf("%s %d/%d  added %d  present %d  failed %d\n",
		m.bar.ViewAs(m.percent()),
		m.counts.Done(), m.total,
		m.counts.Succeeded, m.counts.Duplicate, m.counts.Failed)
}

// ProgressBar is a live terminal progress bar fed by engine events.
type ProgressBar struct {
	program *tea.Program

	mu      sync.Mutex
	running bool
	done    chan struct{}
	err     error
}

// NewProgressBar creates a progress bar for total barcodes writing to w.
// It does not read from the terminal and leaves signal handling to the
// caller.
func NewProgressBar(w io.Writer, total int) *ProgressBar {
	program := tea.NewProgram(
		newProgressModel(total),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	return &ProgressBar{
		program: program,
		done:    make(chan struct{}),
	}
}

// Start runs the bar in the background.
func (p *ProgressBar) Start() {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	go func() {
		_, err := p.program.Run()
		p.mu.Lock()
		p.running = false
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
}

// Running reports whether the bar is on screen.
func (p *ProgressBar) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Update sets the tally shown by the bar.
func (p *ProgressBar) Update(counts results.Counts, total int) {
	if !p.Running() {
		return
	}
	p.program.Send(progressMsg{counts: counts, total: total})
}

// Println prints a line above the bar.
func (p *ProgressBar) Println(line string) {
	p.program.Println(line)
}

// Stop renders the final state and waits for the bar to exit.
func (p *ProgressBar) Stop() error {
	if !p.Running() {
		return nil
	}
	p.program.Send(stopMsg{})
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
