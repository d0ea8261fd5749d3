package reservation

import (
	"fmt"
	"regexp"
	"strings"
)

// Selectors locate the elements of the sign-in and reservation pages.
type Selectors struct {
	LoginEmail    string `yaml:"login_email" json:"login_email"`
	LoginPassword string `yaml:"login_password" json:"login_password"`
	LoginButton   string `yaml:"login_button" json:"login_button"`

	// ItemInput is the barcode entry field on the reservation page.
	ItemInput string `yaml:"item_input" json:"item_input"`

	// SubmitButton is the GO button next to ItemInput.
	SubmitButton string `yaml:"submit_button" json:"submit_button"`

	// CollectMode is the "Collect only" scan-mode radio button.
	CollectMode string `yaml:"collect_mode" json:"collect_mode"`

	// Spinner is shown while a scanned barcode is being processed.
	Spinner string `yaml:"spinner" json:"spinner"`

	// Flash matches the banners the application uses for feedback.
	Flash string `yaml:"flash" json:"flash"`

	Messages Messages `yaml:"messages" json:"messages"`
}

// Messages are case-insensitive regular expressions matched against
// banner text to classify an outcome.
type Messages struct {
	Duplicate  []string `yaml:"duplicate" json:"duplicate"`
	Rejected   []string `yaml:"rejected" json:"rejected"`
	NotFound   []string `yaml:"not_found" json:"not_found"`
	AuthFailed []string `yaml:"auth_failed" json:"auth_failed"`
}

// DefaultSelectors returns the selectors of the Trail web application.
func DefaultSelectors() Selectors {
	return Selectors{
		LoginEmail:    "#user_session_email",
		LoginPassword: "#user_session_password",
		LoginButton:   "#login-button",
		ItemInput:     "#reservation_item",
		SubmitButton:  "form:has(#reservation_item) button",
		CollectMode:   "#scan_mode_collect",
		Spinner:       ".throbber",
		Flash:         ".flash, .alert, .notice, .error, .flash-message",
		Messages: Messages{
			Duplicate: []string{
				`already (been )?(added|on|in|booked)`,
				`duplicate`,
			},
			Rejected: []string{
				`not found`,
				`unknown (asset|item|barcode)`,
				`invalid (asset|item|barcode)`,
				`(could|can) ?not be (added|reserved|booked)`,
				`unavailable`,
			},
			NotFound: []string{
				`reservation.*(not found|does not exist|doesn't exist)`,
				`not authori[sz]ed`,
				`access denied`,
				`permission`,
			},
			AuthFailed: []string{
				`invalid (email|password|username|login)`,
				`incorrect`,
				`locked`,
			},
		},
	}
}

// withDefaults fills empty fields from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.LoginEmail, d.LoginEmail)
	fill(&s.LoginPassword, d.LoginPassword)
	fill(&s.LoginButton, d.LoginButton)
	fill(&s.ItemInput, d.ItemInput)
	fill(&s.SubmitButton, d.SubmitButton)
	fill(&s.CollectMode, d.CollectMode)
	fill(&s.Spinner, d.Spinner)
	fill(&s.Flash, d.Flash)
	if len(s.Messages.Duplicate) == 0 {
		s.Messages.Duplicate = d.Messages.Duplicate
	}
	if len(s.Messages.Rejected) == 0 {
		s.Messages.Rejected = d.Messages.Rejected
	}
	if len(s.Messages.NotFound) == 0 {
		s.Messages.NotFound = d.Messages.NotFound
	}
	if len(s.Messages.AuthFailed) == 0 {
		s.Messages.AuthFailed = d.Messages.AuthFailed
	}
	return s
}

// matcher holds the compiled Messages patterns.
type matcher struct {
	duplicate  []*regexp.Regexp
	rejected   []*regexp.Regexp
	notFound   []*regexp.Regexp
	authFailed []*regexp.Regexp
}

func compileMessages(m Messages) (*matcher, error) {
	compile := func(group string, patterns []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("invalid %s message pattern %q: %w", group, p, err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	var (
		mt  matcher
		err error
	)
	if mt.duplicate, err = compile("duplicate", m.Duplicate); err != nil {
		return nil, err
	}
	if mt.rejected, err = compile("rejected", m.Rejected); err != nil {
		return nil, err
	}
	if mt.notFound, err = compile("not_found", m.NotFound); err != nil {
		return nil, err
	}
	if mt.authFailed, err = compile("auth_failed", m.AuthFailed); err != nil {
		return nil, err
	}
	return &mt, nil
}

// addOutcome classifies the banners shown after a barcode was submitted.
// Duplicate wins over rejected because "already added" messages often also
// contain words like "cannot". It returns the matching banner text.
func (m *matcher) addOutcome(texts []string) (Kind, string, bool) {
	if text, ok := firstMatch(m.duplicate, texts); ok {
		return KindDuplicate, text, true
	}
	if text, ok := firstMatch(m.rejected, texts); ok {
		return KindRejected, text, true
	}
	return KindTransient, "", false
}

// openOutcome reports a banner saying the reservation cannot be shown.
func (m *matcher) openOutcome(texts []string) (string, bool) {
	return firstMatch(m.notFound, texts)
}

// loginOutcome reports a banner saying the credentials were refused.
func (m *matcher) loginOutcome(texts []string) (string, bool) {
	return firstMatch(m.authFailed, texts)
}

func firstMatch(patterns []*regexp.Regexp, texts []string) (string, bool) {
	for _, text := range texts {
		for _, re := range patterns {
			if re.MatchString(text) {
				return text, true
			}
		}
	}
	return "", false
}
