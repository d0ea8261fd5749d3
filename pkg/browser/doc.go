// Package browser provides web browser automation through Playwright.
//
// A Runtime owns the Playwright driver. Each worker of a bulk-add run asks
// the runtime for its own named Session: a Chromium instance with an
// isolated context and a single page. Sessions are never shared, so a
// worker's login cookies and page state belong to that worker alone.
//
// # Session Lifecycle
//
//  1. Initialize: the runtime installs and starts the Playwright driver once
//  2. Start: StartSession launches Chromium and opens a page
//  3. Use: Navigate, Fill, Click and Wait drive the page
//  4. Close: CloseSession releases the browser; Shutdown closes everything
//
// A session that crashed or whose page closed reports false from Alive and
// should be closed and replaced rather than reused.
//
// Texts reads the visible flash banners. MarkSeen tags the banners on screen
// before a submission so NewTexts can return only the ones shown since, or
// whose text changed.
//
// # Example Usage
//
//	runtime := browser.NewRuntime()
//	if err := runtime.Initialize(); err != nil {
//	    return err
//	}
//	defer runtime.Shutdown()
//
//	session, err := runtime.StartSession("worker-1", browser.SessionOptions{
//	    Headless: true,
//	})
//	if err != nil {
//	    return err
//	}
//	_, err = session.Navigate("https://example.trail.fi/login", browser.NavigateOptions{})
//
// PageText turns flash banners and other HTML fragments into plain text for
// error reporting.
package browser
