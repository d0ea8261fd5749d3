package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Kind classifies a driver failure by how the caller must react to it.
type Kind int

const (
	// KindTransient is a timeout, stale element or slow render. Retryable.
	KindTransient Kind = iota
	// KindAuth means the credentials were refused or the signed-in state
	// was never reached. Fatal for the session.
	KindAuth
	// KindNotFound means the reservation does not exist or is not visible
	// to this user. Fatal for the whole run.
	KindNotFound
	// KindDuplicate means the barcode is already on the reservation.
	// Treated as success.
	KindDuplicate
	// KindRejected means the application refused the barcode. Permanent
	// for the item.
	KindRejected
	// KindSessionFaulted means the browser or page is gone, or the session
	// was signed out. The session must be rebuilt.
	KindSessionFaulted
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindRejected:
		return "rejected"
	case KindSessionFaulted:
		return "session_faulted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a classified *Error.
var (
	ErrTransient      = errors.New("transient UI error")
	ErrAuth           = errors.New("authentication failed")
	ErrNotFound       = errors.New("reservation not found")
	ErrDuplicate      = errors.New("barcode already on reservation")
	ErrRejected       = errors.New("barcode rejected")
	ErrSessionFaulted = errors.New("browser session faulted")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindDuplicate:
		return ErrDuplicate
	case KindRejected:
		return ErrRejected
	case KindSessionFaulted:
		return ErrSessionFaulted
	default:
		return ErrTransient
	}
}

// Error is a classified driver failure.
type Error struct {
	Kind Kind

	// Op is the driver operation: login, open_reservation or add_barcode.
	Op string

	// Barcode is set for add_barcode failures.
	Barcode string

	// Detail is a human-readable reason, usually the page's own message.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.sentinel().Error()
	if e.Barcode != "" {
		msg += " (" + e.Barcode + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Reason returns the short text recorded against a failed item.
func (e *Error) Reason() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.sentinel().Error()
}

// KindOf returns the kind of a classified error. Unclassified errors are
// transient.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return KindTransient
}

// IsFatal reports whether err must stop the whole run: bad credentials or
// an unusable reservation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	kind := KindOf(err)
	return kind == KindAuth || kind == KindNotFound
}

// Classify turns a raw browser error into a classified *Error. Errors that
// are already classified and context errors pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rerr *Error
	if errors.As(err, &rerr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := KindTransient
	if errors.Is(err, playwright.ErrTargetClosed) {
		kind = KindSessionFaulted
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func newError(kind Kind, op, barcode, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Barcode: barcode, Detail: detail, Err: err}
}

// IsTimeout reports whether err came from a Playwright wait running out.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}
