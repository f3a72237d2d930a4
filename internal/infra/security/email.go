package security

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalidEmail indicates the identifier does not parse as an email
// address. Raised as a caller-facing precondition before authentication.
var ErrInvalidEmail = errors.New("invalid email address")

// ValidateEmail checks the identifier has a plausible email shape and
// returns the normalised (trimmed, lowercased) form.
func ValidateEmail(identifier string) (string, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(trimmed), nil
}
