package domain

import "time"

// AccountAuthenticatedEvent represents the payload for auth.account.authenticated messages.
type AccountAuthenticatedEvent struct {
	EventID         string
	AccountID       string
	AuthenticatedAt time.Time
	HashRotated     bool
	Metadata        map[string]any
}

// AuthenticationFailedEvent represents the payload for auth.account.login_failed messages.
// The identifier is masked before it is attached; a failed attempt must not
// reveal whether the account exists.
type AuthenticationFailedEvent struct {
	EventID          string
	AccountID        string
	MaskedIdentifier string
	FailedAt         time.Time
	Metadata         map[string]any
}

// PasswordChangedEvent represents the payload for auth.account.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	Metadata  map[string]any
}

// IdentityLinkedEvent represents the payload for auth.account.identity.linked messages.
type IdentityLinkedEvent struct {
	EventID        string
	AccountID      string
	Subject        string
	AccountCreated bool
	LinkedAt       time.Time
	Metadata       map[string]any
}
