package reservation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/entrhq/reservation-bulk-add/pkg/browser"
)

// Driver operation names used in classified errors.
const (
	OpLogin           = "login"
	OpOpenReservation = "open_reservation"
	OpAddBarcode      = "add_barcode"
)

// Driver performs the fixed sign-in, open, add-barcode workflow against one
// browser session. A Driver is owned by a single worker and is not safe for
// concurrent use.
type Driver interface {
	// Login signs in. It fails with KindAuth when the credentials are refused
	// or the signed-in state is not reached in time.
	Login(ctx context.Context, creds Credentials) error

	// OpenReservation loads the reservation page and readies the barcode
	// input. It fails with KindNotFound, KindAuth or KindTransient.
	OpenReservation(ctx context.Context, reservationID string) error

	// AddBarcode submits one barcode exactly once. It fails with
	// KindDuplicate, KindRejected, KindTransient or KindSessionFaulted.
	AddBarcode(ctx context.Context, barcode string) error

	// Close releases the browser.
	Close() error
}

// SessionState is the liveness of a driver's browser session.
type SessionState string

const (
	SessionFresh         SessionState = "fresh"
	SessionAuthenticated SessionState = "authenticated"
	SessionNavigated     SessionState = "navigated"
	SessionFaulted       SessionState = "faulted"
)

// Timeouts bound every browser wait the driver performs.
type Timeouts struct {
	Login      time.Duration `yaml:"login" json:"login"`
	Navigation time.Duration `yaml:"navigation" json:"navigation"`
	Action     time.Duration `yaml:"action" json:"action"`
}

// DefaultTimeouts returns the waits used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Login:      15 * time.Second,
		Navigation: 20 * time.Second,
		Action:     10 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Login <= 0 {
		t.Login = d.Login
	}
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.Action <= 0 {
		t.Action = d.Action
	}
	return t
}

// TrailDriver drives the Trail web application through a browser.Session.
type TrailDriver struct {
	session   *browser.Session
	closeFn   func() error
	target    Target
	selectors Selectors
	timeouts  Timeouts
	messages  *matcher

	mu    sync.Mutex
	state SessionState
}

// NewTrailDriver wraps an open session. closeFn releases the session and is
// called once by Close.
func NewTrailDriver(session *browser.Session, closeFn func() error, target Target, selectors Selectors, timeouts Timeouts) (*TrailDriver, error) {
	selectors = selectors.withDefaults()
	messages, err := compileMessages(selectors.Messages)
	if err != nil {
		return nil, err
	}
	return &TrailDriver{
		session:   session,
		closeFn:   closeFn,
		target:    target,
		selectors: selectors,
		timeouts:  timeouts.withDefaults(),
		messages:  messages,
		state:     SessionFresh,
	}, nil
}

// State returns the current session state.
func (d *TrailDriver) State() SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *TrailDriver) setState(state SessionState) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

// fail records a session fault before returning err.
func (d *TrailDriver) fail(err error) error {
	if KindOf(err) == KindSessionFaulted {
		d.setState(SessionFaulted)
	}
	return err
}

// Login navigates to the site, which redirects to the sign-in form, submits
// the credentials and waits for the form to go away.
func (d *TrailDriver) Login(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.session.Alive() {
		return d.fail(newError(KindSessionFaulted, OpLogin, "", "browser is not running", nil))
	}

	wait := browser.Milliseconds(d.timeouts.Login)

	if _, err := d.session.Navigate(d.target.BaseURL(), browser.NavigateOptions{
		WaitUntil: "domcontentloaded",
		Timeout:   browser.Milliseconds(d.timeouts.Navigation),
	}); err != nil {
		return d.fail(d.loginError("sign-in page not reached", err))
	}

	if err := d.session.Wait(browser.WaitOptions{
		Selector: d.selectors.LoginEmail,
		State:    browser.StateVisible,
		Timeout:  wait,
	}); err != nil {
		return d.fail(d.loginError("sign-in form not shown", err))
	}

	steps := []func() error{
		func() error {
			return d.session.Fill(browser.FillOptions{Selector: d.selectors.LoginEmail, Value: creds.Username, Timeout: wait})
		},
		func() error {
			return d.session.Fill(browser.FillOptions{Selector: d.selectors.LoginPassword, Value: creds.Password, Timeout: wait})
		},
		func() error {
			return d.session.Click(browser.ClickOptions{Selector: d.selectors.LoginButton, Timeout: wait})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return d.fail(d.loginError("sign-in form could not be submitted", err))
		}
	}

	err := d.session.Wait(browser.WaitOptions{
		Selector: d.selectors.LoginEmail,
		State:    browser.StateDetached,
		Timeout:  wait,
	})
	if err != nil {
		if texts, textErr := d.session.Texts(d.selectors.Flash); textErr == nil {
			if text, ok := d.messages.loginOutcome(texts); ok {
				return newError(KindAuth, OpLogin, "", text, nil)
			}
		}
		return d.fail(d.loginError("still on the sign-in page", err))
	}

	d.setState(SessionAuthenticated)
	return nil
}

// loginError classifies a login step failure. A dead browser is a session
// fault; anything else, timeouts included, means sign-in was not reached.
func (d *TrailDriver) loginError(detail string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	classified := Classify(OpLogin, err)
	if KindOf(classified) == KindSessionFaulted {
		return classified
	}
	return newError(KindAuth, OpLogin, "", detail, err)
}

// OpenReservation loads the reservation page, waits for the barcode input
// and makes sure "Collect only" scan mode is selected.
func (d *TrailDriver) OpenReservation(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.session.Alive() {
		return d.fail(newError(KindSessionFaulted, OpOpenReservation, "", "browser is not running", nil))
	}

	target := d.target
	if reservationID != "" {
		target.ReservationID = reservationID
	}

	status, err := d.session.Navigate(target.ReservationURL(), browser.NavigateOptions{
		WaitUntil: "domcontentloaded",
		Timeout:   browser.Milliseconds(d.timeouts.Navigation),
	})
	if err != nil {
		return d.fail(Classify(OpOpenReservation, err))
	}

	switch status {
	case http.StatusNotFound, http.StatusForbidden, http.StatusGone:
		return newError(KindNotFound, OpOpenReservation, "",
			fmt.Sprintf("reservation %s returned HTTP %d", target.ReservationID, status), nil)
	case http.StatusUnauthorized:
		return newError(KindAuth, OpOpenReservation, "", "signed out while opening reservation", nil)
	}

	if texts, textErr := d.session.Texts(d.selectors.Flash); textErr == nil {
		if text, ok := d.messages.openOutcome(texts); ok {
			return newError(KindNotFound, OpOpenReservation, "", text, nil)
		}
	}

	if onLogin, _ := d.session.IsVisible(d.selectors.LoginEmail); onLogin {
		return newError(KindAuth, OpOpenReservation, "", "redirected to the sign-in page", nil)
	}

	action := browser.Milliseconds(d.timeouts.Action)
	if err := d.session.Wait(browser.WaitOptions{
		Selector: d.selectors.ItemInput,
		State:    browser.StateVisible,
		Timeout:  browser.Milliseconds(d.timeouts.Navigation),
	}); err != nil {
		return d.fail(Classify(OpOpenReservation, err))
	}

	if err := d.session.Click(browser.ClickOptions{Selector: d.selectors.ItemInput, Timeout: action}); err != nil {
		return d.fail(Classify(OpOpenReservation, err))
	}

	checked, err := d.session.IsChecked(d.selectors.CollectMode, action)
	if err != nil {
		return d.fail(Classify(OpOpenReservation, err))
	}
	if !checked {
		if err := d.session.Click(browser.ClickOptions{Selector: d.selectors.CollectMode, Timeout: action}); err != nil {
			return d.fail(Classify(OpOpenReservation, err))
		}
	}

	d.setState(SessionNavigated)
	return nil
}

// AddBarcode types the barcode into the entry field, clicks GO once, waits
// for the spinner to clear and reads the banner the submission produced.
// Banners already showing before the click are ignored unless their text
// changed.
func (d *TrailDriver) AddBarcode(ctx context.Context, barcode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.session.Alive() {
		return d.fail(newError(KindSessionFaulted, OpAddBarcode, barcode, "browser is not running", nil))
	}
	if d.State() != SessionNavigated {
		return newError(KindSessionFaulted, OpAddBarcode, barcode, "session is not on the reservation page", nil)
	}

	action := browser.Milliseconds(d.timeouts.Action)

	if err := d.session.Fill(browser.FillOptions{
		Selector: d.selectors.ItemInput,
		Value:    barcode,
		Timeout:  action,
	}); err != nil {
		return d.fail(d.addError(barcode, err))
	}

	if err := d.session.MarkSeen(d.selectors.Flash); err != nil {
		return d.fail(d.addError(barcode, err))
	}

	if err := d.session.Click(browser.ClickOptions{Selector: d.selectors.SubmitButton, Timeout: action}); err != nil {
		return d.fail(d.addError(barcode, err))
	}

	if err := d.session.Wait(browser.WaitOptions{
		Selector: d.selectors.Spinner,
		State:    browser.StateHidden,
		Timeout:  action,
	}); err != nil {
		return d.fail(d.addError(barcode, err))
	}

	if onLogin, _ := d.session.IsVisible(d.selectors.LoginEmail); onLogin {
		return d.fail(newError(KindSessionFaulted, OpAddBarcode, barcode, "signed out", nil))
	}

	texts, err := d.session.NewTexts(d.selectors.Flash)
	if err != nil {
		return d.fail(d.addError(barcode, err))
	}
	if kind, text, ok := d.messages.addOutcome(texts); ok {
		return newError(kind, OpAddBarcode, barcode, text, nil)
	}
	return nil
}

func (d *TrailDriver) addError(barcode string, err error) error {
	classified := Classify(OpAddBarcode, err)
	if rerr, ok := classified.(*Error); ok {
		rerr.Barcode = barcode
		if IsTimeout(err) {
			rerr.Detail = "timed out waiting for the page"
		}
	}
	return classified
}

// Close releases the browser session. It is safe to call more than once.
func (d *TrailDriver) Close() error {
	d.setState(SessionFaulted)
	if d.closeFn == nil {
		return nil
	}
	fn := d.closeFn
	d.closeFn = nil
	return fn()
}
