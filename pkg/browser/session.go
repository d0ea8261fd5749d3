package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Alive reports whether the page and browser can still be driven.
func (s *Session) Alive() bool {
	if s.Page == nil || s.Browser == nil {
		return false
	}
	return !s.Page.IsClosed() && s.Browser.IsConnected()
}

// Navigate navigates the session's page to the specified URL and returns
// the HTTP status of the main response (0 when there was none).
func (s *Session) Navigate(url string, opts NavigateOptions) (int, error) {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	response, err := s.Page.Goto(url, playwrightOpts)
	if err != nil {
		return 0, fmt.Errorf("navigation failed: %w", err)
	}

	if response == nil {
		return 0, nil
	}
	return response.Status(), nil
}

// Click clicks an element matching the selector.
func (s *Session) Click(opts ClickOptions) error {
	playwrightOpts := playwright.PageClickOptions{}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Click(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("click %s failed: %w", opts.Selector, err)
	}
	return nil
}

// Fill replaces the value of an input element.
func (s *Session) Fill(opts FillOptions) error {
	playwrightOpts := playwright.PageFillOptions{}
	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if err := s.Page.Fill(opts.Selector, opts.Value, playwrightOpts); err != nil {
		return fmt.Errorf("fill %s failed: %w", opts.Selector, err)
	}
	return nil
}

// Wait waits for an element to reach a state.
func (s *Session) Wait(opts WaitOptions) error {
	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}

	playwrightOpts := playwright.PageWaitForSelectorOptions{}

	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		playwrightOpts.State = &state
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.WaitForSelector(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("wait for %s (%s) failed: %w", opts.Selector, opts.State, err)
	}
	return nil
}

// IsVisible reports whether an element matching the selector is visible
// right now. It does not wait.
func (s *Session) IsVisible(selector string) (bool, error) {
	visible, err := s.Page.IsVisible(selector)
	if err != nil {
		return false, fmt.Errorf("visibility check %s failed: %w", selector, err)
	}
	return visible, nil
}

// IsChecked reports whether a checkbox or radio button is checked.
func (s *Session) IsChecked(selector string, timeout float64) (bool, error) {
	playwrightOpts := playwright.PageIsCheckedOptions{}
	if timeout > 0 {
		playwrightOpts.Timeout = &timeout
	}

	checked, err := s.Page.IsChecked(selector, playwrightOpts)
	if err != nil {
		return false, fmt.Errorf("checked state %s failed: %w", selector, err)
	}
	return checked, nil
}

// seenAttribute marks banners that were on the page before an action.
const seenAttribute = "data-bulk-add-seen"

// markSeenScript tags every element matching the selector with its
// current text, so a later read can tell new or changed banners apart.
const markSeenScript = `(selector) => {
	for (const el of document.querySelectorAll(selector)) {
		el.setAttribute("` + seenAttribute + `", "seen:" + (el.textContent || ""));
	}
}`

// MarkSeen records the elements currently matching the selector. NewTexts
// then skips them unless their text changes.
func (s *Session) MarkSeen(selector string) error {
	if _, err := s.Page.Evaluate(markSeenScript, selector); err != nil {
		return fmt.Errorf("mark %s failed: %w", selector, err)
	}
	return nil
}

// Texts returns the text of every visible element currently matching the
// selector, in document order. Elements without text are skipped.
func (s *Session) Texts(selector string) ([]string, error) {
	return s.texts(selector, false)
}

// NewTexts is Texts restricted to elements that appeared or changed since
// the last MarkSeen.
func (s *Session) NewTexts(selector string) ([]string, error) {
	return s.texts(selector, true)
}

func (s *Session) texts(selector string, onlyNew bool) ([]string, error) {
	elements, err := s.Page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("selector query %s failed: %w", selector, err)
	}

	var texts []string
	for _, element := range elements {
		// Errors mean the element was removed between the query and the read.
		if visible, visErr := element.IsVisible(); visErr != nil || !visible {
			continue
		}
		if onlyNew && seenBefore(element) {
			continue
		}
		inner, innerErr := element.InnerHTML()
		if innerErr != nil {
			continue
		}
		text, textErr := PageText(inner, DefaultMaxTextLength)
		if textErr != nil || text == "" {
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// seenBefore reports whether element still shows the text MarkSeen saw.
func seenBefore(element playwright.ElementHandle) bool {
	mark, err := element.GetAttribute(seenAttribute)
	if err != nil || mark == "" {
		return false
	}
	content, err := element.TextContent()
	if err != nil {
		return false
	}
	return mark == "seen:"+content
}
