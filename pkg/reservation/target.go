package reservation

import (
	"fmt"
	"net/url"
	"strings"
)

// Target identifies the reservation being filled. It is shared read-only
// by every session.
type Target struct {
	// SiteURL is the application host, with or without a scheme
	// ("trail.example.com" or "https://trail.example.com").
	SiteURL string

	// ReservationID is the numeric or slug identifier of the reservation.
	ReservationID string
}

// Credentials are the sign-in details every session uses.
type Credentials struct {
	Username string
	Password string
}

// Validate checks that the target can be turned into URLs.
func (t Target) Validate() error {
	if strings.TrimSpace(t.SiteURL) == "" {
		return fmt.Errorf("site URL is required")
	}
	id := strings.TrimSpace(t.ReservationID)
	if id == "" {
		return fmt.Errorf("reservation ID is required")
	}
	if strings.ContainsAny(id, "/?#") {
		return fmt.Errorf("reservation ID %q must not contain '/', '?' or '#'", id)
	}
	base, err := url.Parse(t.BaseURL())
	if err != nil {
		return fmt.Errorf("invalid site URL %q: %w", t.SiteURL, err)
	}
	if base.Host == "" {
		return fmt.Errorf("invalid site URL %q: missing host", t.SiteURL)
	}
	return nil
}

// BaseURL returns the application root with a scheme and no trailing slash.
// Sites given without a scheme are reached over https.
func (t Target) BaseURL() string {
	site := strings.TrimSpace(t.SiteURL)
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	return strings.TrimRight(site, "/")
}

// ReservationURL returns the page where barcodes are scanned in. It never
// ends with a slash.
func (t Target) ReservationURL() string {
	return t.BaseURL() + "/reservations/" + url.PathEscape(strings.TrimSpace(t.ReservationID))
}

// Validate checks that both credentials are present.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("a username and password must be provided")
	}
	return nil
}
