package port

import "github.com/meridian-id/authcore/internal/core/domain"

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher hashes and verifies secrets using an adaptive algorithm
// whose work factor is embedded in the encoded hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
	// Cost extracts the work factor embedded in the encoded hash.
	Cost(encoded string) (int, error)
}
