package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents one browser owned by a single worker: a Chromium
// instance, its isolated context and the page being driven.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated cookies and storage)
	Context playwright.BrowserContext

	// Page is the page being driven
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64

	// Args are extra Chromium command-line switches
	Args []string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Selector identifies the element to click
	Selector string

	// Timeout in milliseconds
	Timeout float64
}

// FillOptions configures form input filling. Filling replaces any value
// already in the field.
type FillOptions struct {
	// Selector identifies the input element
	Selector string

	// Value is the text to fill
	Value string

	// Timeout in milliseconds
	Timeout float64
}

// WaitOptions configures waiting behavior.
type WaitOptions struct {
	// Selector to wait for
	Selector string

	// State to wait for: "attached", "detached", "visible", "hidden"
	State string

	// Timeout in milliseconds
	Timeout float64
}

// Wait states accepted by WaitOptions.State.
const (
	StateAttached = "attached"
	StateDetached = "detached"
	StateVisible  = "visible"
	StateHidden   = "hidden"
)

// Default values for sessions and operations
const (
	DefaultTimeout        = 10000.0 // 10 seconds in milliseconds
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultMaxSessions    = 16
	DefaultMaxTextLength  = 2000
)

// Milliseconds converts a duration to the float milliseconds Playwright expects.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
