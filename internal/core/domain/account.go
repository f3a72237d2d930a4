package domain

import "time"

// PasswordHash models the optional local password credential. An account
// without a valid hash is external-identity-only and can never pass
// password-based authentication.
type PasswordHash struct {
	Value string
	Valid bool
}

// NewPasswordHash wraps an encoded hash value.
func NewPasswordHash(value string) PasswordHash {
	if value == "" {
		return PasswordHash{}
	}
	return PasswordHash{Value: value, Valid: true}
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID              string
	Email           string
	GivenName       string
	FamilyName      string
	EmailConfirmed  bool
	Password        PasswordHash
	LoginEpoch      int64
	LastFailedLogin *time.Time
	ExternalIDs     []string
	RegisteredAt    time.Time
}

// HasExternalID reports whether the subject identifier is already linked.
func (a *Account) HasExternalID(id string) bool {
	for _, existing := range a.ExternalIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AccountPatch describes a partial update applied through the credential
// store. Nil fields are left untouched.
type AccountPatch struct {
	Email           *string
	GivenName       *string
	FamilyName      *string
	EmailConfirmed  *bool
	PasswordHash    *string
	LastFailedLogin *time.Time
	AddExternalID   *string
	// AdvanceLoginEpoch increments the per-account epoch as part of the
	// same statement; conditioned updates use it as the CAS step.
	AdvanceLoginEpoch bool
}

// IsZero reports whether the patch carries no changes.
func (p AccountPatch) IsZero() bool {
	return p.Email == nil &&
		p.GivenName == nil &&
		p.FamilyName == nil &&
		p.EmailConfirmed == nil &&
		p.PasswordHash == nil &&
		p.LastFailedLogin == nil &&
		p.AddExternalID == nil &&
		!p.AdvanceLoginEpoch
}

// PasswordContext carries user attributes a password must not be derived
// from when the policy is evaluated.
type PasswordContext struct {
	Email string
}

// ExternalClaims captures the subject and profile attributes asserted by
// an external identity provider during federated login.
type ExternalClaims struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
}

// RegistrationProfile is handed to the external registration collaborator
// when a first-seen external claim requires a new account.
type RegistrationProfile struct {
	Email      string
	GivenName  string
	FamilyName string
	Password   string
}
