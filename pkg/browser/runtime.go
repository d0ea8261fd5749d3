package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Runtime owns the Playwright driver and every browser session launched
// from it. Each worker gets its own session; sessions are never shared.
type Runtime struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	maxSessions int
	initialized bool
}

// NewRuntime creates a runtime. Initialize must be called before sessions
// can be started.
func NewRuntime() *Runtime {
	return &Runtime{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
	}
}

// Initialize installs (if needed) and starts the Playwright driver.
// Calling it again after a successful start is a no-op.
func (r *Runtime) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	// Driver output would interleave with progress lines on the console.
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	r.playwright = pw
	r.initialized = true
	return nil
}

// LaunchArgs returns the Chromium switches used for a session.
func LaunchArgs(headless bool) []string {
	args := []string{
		"--disable-gpu",
		"--disable-notifications",
		"--disable-infobars",
	}
	if headless {
		args = append(args, "--no-sandbox", "--disable-dev-shm-usage")
	}
	return args
}

// StartSession launches a new browser session with the given name.
func (r *Runtime) StartSession(name string, opts SessionOptions) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, fmt.Errorf("browser runtime not initialized")
	}

	if _, exists := r.sessions[name]; exists {
		return nil, fmt.Errorf("session %q already exists", name)
	}

	if len(r.sessions) >= r.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", r.maxSessions)
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Args == nil {
		opts.Args = LaunchArgs(opts.Headless)
	}

	browser, err := r.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Bounds every call that does not pass its own timeout.
	page.SetDefaultTimeout(opts.Timeout)
	page.SetDefaultNavigationTimeout(opts.Timeout)

	session := &Session{
		Name:     name,
		Browser:  browser,
		Context:  context,
		Page:     page,
		Headless: opts.Headless,
	}

	r.sessions[name] = session
	return session, nil
}

// CloseSession closes and forgets a session. Closing an unknown session
// is not an error, so workers can close unconditionally on exit.
func (r *Runtime) CloseSession(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[name]
	if !exists {
		return nil
	}
	delete(r.sessions, name)
	return session.close()
}

// SessionCount returns the number of open sessions.
func (r *Runtime) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (r *Runtime) SetMaxSessions(max int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxSessions = max
}

// Shutdown closes all sessions and stops the Playwright driver.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, session := range r.sessions {
		if err := session.close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", name, err))
		}
		delete(r.sessions, name)
	}

	if r.initialized && r.playwright != nil {
		if err := r.playwright.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		r.initialized = false
	}

	return errors.Join(errs...)
}

// close releases the page, context and browser. The browser is closed even
// when the page or context already went away.
func (s *Session) close() error {
	var errs []error
	if s.Page != nil && !s.Page.IsClosed() {
		if err := s.Page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Context != nil {
		if err := s.Context.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Browser != nil && s.Browser.IsConnected() {
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
