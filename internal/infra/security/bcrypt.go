package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates input beyond 72 bytes; the password policy
// enforces the same ceiling so nothing reaches the hasher above it.
const MaxPasswordBytes = 72

const defaultHashConcurrency = 8

var (
	// ErrMalformedHash indicates the stored hash cannot be decoded. Fatal to
	// the caller; never retried.
	ErrMalformedHash = errors.New("bcrypt: malformed encoded hash")

	errInvalidHasherConfig = errors.New("bcrypt: invalid configuration")
)

// BcryptConfig defines tunable parameters for bcrypt password hashing.
type BcryptConfig struct {
	// Cost is the target work factor new hashes are produced at.
	Cost int
	// Version is the algorithm minor-version tag expected in encoded
	// hashes. Only "2a" is supported by the underlying implementation.
	Version string
	// MaxConcurrency bounds how many hash computations may run at once so
	// CPU-bound hashing cannot starve unrelated request handling.
	MaxConcurrency int
}

// DefaultBcryptConfig returns the library default bcrypt configuration.
func DefaultBcryptConfig() BcryptConfig {
	return BcryptConfig{
		Cost:           12,
		Version:        "2a",
		MaxConcurrency: defaultHashConcurrency,
	}
}

// BcryptHasher implements port.PasswordHasher using bcrypt.
type BcryptHasher struct {
	cfg BcryptConfig
	sem chan struct{}
}

// NewBcryptHasher constructs a hasher after validating the configuration.
func NewBcryptHasher(cfg BcryptConfig) (*BcryptHasher, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: cost must be between %d and %d", errInvalidHasherConfig, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.Version == "" {
		cfg.Version = "2a"
	}
	if cfg.Version != "2a" {
		return nil, fmt.Errorf("%w: unsupported minor version %q", errInvalidHasherConfig, cfg.Version)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultHashConcurrency
	}

	return &BcryptHasher{
		cfg: cfg,
		sem: make(chan struct{}, cfg.MaxConcurrency),
	}, nil
}

// TargetCost returns the work factor new hashes are produced at.
func (h *BcryptHasher) TargetCost() int {
	return h.cfg.Cost
}

// Hash generates a salted bcrypt hash of the password at the target cost.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("bcrypt: password exceeds %d bytes", MaxPasswordBytes)
	}

	h.acquire()
	defer h.release()

	sum, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: hash password: %w", err)
	}

	return string(sum), nil
}

// Verify compares the provided password against the stored bcrypt hash.
// A mismatch is reported as (false, nil); a hash that cannot be decoded
// wraps ErrMalformedHash.
func (h *BcryptHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	h.acquire()
	defer h.release()

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// Cost extracts the work factor embedded in the encoded hash.
func (h *BcryptHasher) Cost(encoded string) (int, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost, nil
}

func (h *BcryptHasher) acquire() { h.sem <- struct{}{} }
func (h *BcryptHasher) release() { <-h.sem }
