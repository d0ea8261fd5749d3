package reservation

import (
	"fmt"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/reservation-bulk-add/pkg/browser"
)

var (
	errWaitTimeout  = fmt.Errorf("%w: waiting for selector", playwright.ErrTimeout)
	errTargetClosed = fmt.Errorf("%w: browser has been closed", playwright.ErrTargetClosed)
)

// fakeBanner is a flash element on the fake page.
type fakeBanner struct {
	playwright.ElementHandle
	text   string
	hidden bool
	attrs  map[string]string
}

func (b *fakeBanner) IsVisible() (bool, error) { return !b.hidden, nil }

func (b *fakeBanner) InnerHTML() (string, error) { return b.text, nil }

func (b *fakeBanner) TextContent() (string, error) { return b.text, nil }

func (b *fakeBanner) GetAttribute(name string) (string, error) {
	return b.attrs[name], nil
}

type fakeResponse struct {
	playwright.Response
	status int
}

func (r *fakeResponse) Status() int { return r.status }

type fakeBrowser struct {
	playwright.Browser
}

func (fakeBrowser) IsConnected() bool { return true }

// fakePage plays the Trail sign-in and reservation pages. Only the calls
// browser.Session makes are implemented.
type fakePage struct {
	playwright.Page
	sel Selectors

	url      string
	status   int
	visible  map[string]bool
	checked  map[string]bool
	values   map[string]string
	clickErr map[string]error
	banners  []*fakeBanner
	visits   []string
	clicks   []string

	// arrive runs after every navigation, once the old banners are gone.
	arrive func(p *fakePage)
	// login runs when the sign-in button is clicked.
	login func(p *fakePage)
	// submit runs when GO is clicked with the barcode in the entry field.
	submit func(p *fakePage, barcode string)
}

// newTrailPage returns a page that accepts the password "secret", rejects
// barcodes starting with "BAD", reports "DUP" barcodes as already added and
// never clears the spinner for "SLOW".
func newTrailPage() *fakePage {
	sel := DefaultSelectors()
	p := &fakePage{
		sel:      sel,
		status:   200,
		visible:  map[string]bool{sel.LoginEmail: true, sel.ItemInput: true},
		checked:  map[string]bool{sel.CollectMode: false},
		values:   map[string]string{},
		clickErr: map[string]error{},
	}
	p.login = func(p *fakePage) {
		if p.values[p.sel.LoginPassword] == "secret" {
			p.visible[p.sel.LoginEmail] = false
			return
		}
		p.show("Invalid email or password.")
	}
	p.submit = func(p *fakePage, barcode string) {
		switch {
		case barcode == "DUP":
			p.banners = []*fakeBanner{{text: "Item DUP has already been added to this reservation"}}
		case len(barcode) >= 3 && barcode[:3] == "BAD":
			p.banners = []*fakeBanner{{text: "Unknown asset " + barcode}}
		case barcode == "SLOW":
			p.visible[p.sel.Spinner] = true
		default:
			p.banners = []*fakeBanner{{text: "Item " + barcode + " added"}}
		}
	}
	return p
}

func (p *fakePage) show(text string) {
	p.banners = append(p.banners, &fakeBanner{text: text})
}

func (p *fakePage) Goto(url string, _ ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.visits = append(p.visits, url)
	p.url = url
	p.banners = nil
	if p.arrive != nil {
		p.arrive(p)
	}
	return &fakeResponse{status: p.status}, nil
}

func (p *fakePage) Click(selector string, _ ...playwright.PageClickOptions) error {
	if err := p.clickErr[selector]; err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	if _, ok := p.checked[selector]; ok {
		p.checked[selector] = true
	}
	switch selector {
	case p.sel.LoginButton:
		p.login(p)
	case p.sel.SubmitButton:
		p.submit(p, p.values[p.sel.ItemInput])
	}
	return nil
}

func (p *fakePage) Fill(selector, value string, _ ...playwright.PageFillOptions) error {
	p.values[selector] = value
	return nil
}

func (p *fakePage) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	state := browser.StateVisible
	if len(options) > 0 && options[0].State != nil {
		state = string(*options[0].State)
	}
	met := p.visible[selector]
	if state == browser.StateHidden || state == browser.StateDetached {
		met = !met
	}
	if !met {
		return nil, errWaitTimeout
	}
	return nil, nil
}

func (p *fakePage) IsVisible(selector string, _ ...playwright.PageIsVisibleOptions) (bool, error) {
	return p.visible[selector], nil
}

func (p *fakePage) IsChecked(selector string, _ ...playwright.PageIsCheckedOptions) (bool, error) {
	return p.checked[selector], nil
}

func (p *fakePage) QuerySelectorAll(selector string) ([]playwright.ElementHandle, error) {
	if selector != p.sel.Flash {
		return nil, nil
	}
	out := make([]playwright.ElementHandle, 0, len(p.banners))
	for _, b := range p.banners {
		out = append(out, b)
	}
	return out, nil
}

// Evaluate stands in for the script that tags the banners already shown.
func (p *fakePage) Evaluate(_ string, _ ...interface{}) (interface{}, error) {
	for _, b := range p.banners {
		if b.attrs == nil {
			b.attrs = map[string]string{}
		}
		b.attrs["data-bulk-add-seen"] = "seen:" + b.text
	}
	return nil, nil
}

func (p *fakePage) IsClosed() bool { return false }

func (p *fakePage) URL() string { return p.url }

// newFakeDriver wraps page in a TrailDriver for reservation 1234.
func newFakeDriver(t *testing.T, page *fakePage) *TrailDriver {
	t.Helper()
	session := &browser.Session{Name: "worker-1", Browser: fakeBrowser{}, Page: page}
	d, err := NewTrailDriver(session, nil, Target{SiteURL: "trail.example.com", ReservationID: "1234"}, page.sel, Timeouts{})
	require.NoError(t, err)
	return d
}

// openedDriver returns a driver signed in and on the reservation page.
func openedDriver(t *testing.T, page *fakePage) *TrailDriver {
	t.Helper()
	page.visible[page.sel.LoginEmail] = false
	d := newFakeDriver(t, page)
	require.NoError(t, d.OpenReservation(t.Context(), "1234"))
	return d
}
