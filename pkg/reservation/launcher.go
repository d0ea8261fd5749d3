package reservation

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/reservation-bulk-add/pkg/browser"
)

// LauncherOptions configures the browser sessions a Launcher opens.
type LauncherOptions struct {
	Headless  bool
	Selectors Selectors
	Timeouts  Timeouts
}

// Launcher opens one browser session per worker on a shared Playwright
// runtime and wraps it in a TrailDriver.
type Launcher struct {
	runtime *browser.Runtime
	target  Target
	opts    LauncherOptions

	mu         sync.Mutex
	generation map[string]int
}

// NewLauncher creates a launcher for target.
func NewLauncher(runtime *browser.Runtime, target Target, opts LauncherOptions) *Launcher {
	return &Launcher{
		runtime:    runtime,
		target:     target,
		opts:       opts,
		generation: make(map[string]int),
	}
}

// Launch starts a fresh browser for worker. A worker that rebuilds its
// session gets a new session name so the old one can still be closed.
func (l *Launcher) Launch(ctx context.Context, worker string) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.runtime.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	l.mu.Lock()
	l.generation[worker]++
	name := fmt.Sprintf("%s#%d", worker, l.generation[worker])
	l.mu.Unlock()

	session, err := l.runtime.StartSession(name, browser.SessionOptions{
		Headless: l.opts.Headless,
		Timeout:  browser.Milliseconds(l.opts.Timeouts.withDefaults().Action),
	})
	if err != nil {
		return nil, newError(KindSessionFaulted, OpLogin, "", "browser could not be started", err)
	}

	driver, err := NewTrailDriver(session, func() error {
		return l.runtime.CloseSession(name)
	}, l.target, l.opts.Selectors, l.opts.Timeouts)
	if err != nil {
		_ = l.runtime.CloseSession(name)
		return nil, err
	}
	return driver, nil
}
