package domain

import (
	"fmt"
	"net/mail"
	"strings"
)

// SubscriberEmail is a validated subscriber address. The zero value is not
// valid; construct via ParseSubscriberEmail.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates a raw address. Addresses already stored in
// the delivery queue are re-parsed at send time, so a record that fails here
// is a poison task rather than a transient failure.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	if strings.TrimSpace(raw) == "" {
		return SubscriberEmail{}, fmt.Errorf("subscriber email is empty")
	}
	if len(raw) > 254 {
		return SubscriberEmail{}, fmt.Errorf("subscriber email exceeds 254 characters")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return SubscriberEmail{}, fmt.Errorf("%q is not a valid subscriber email: %w", raw, err)
	}
	// mail.ParseAddress accepts display names ("A <a@b.c>"); stored
	// addresses must be the bare address only.
	if addr.Address != raw {
		return SubscriberEmail{}, fmt.Errorf("%q is not a bare email address", raw)
	}
	local, domainPart, found := strings.Cut(raw, "@")
	if !found || local == "" || domainPart == "" || !strings.Contains(domainPart, ".") {
		return SubscriberEmail{}, fmt.Errorf("%q is not a valid subscriber email", raw)
	}
	return SubscriberEmail{value: raw}, nil
}

// String returns the underlying address.
func (e SubscriberEmail) String() string {
	return e.value
}
