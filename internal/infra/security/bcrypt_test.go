package security

import (
	"errors"
	"strings"
	"testing"
)

func newTestHasher(t *testing.T, cost int) *BcryptHasher {
	t.Helper()

	hasher, err := NewBcryptHasher(BcryptConfig{Cost: cost, MaxConcurrency: 2})
	if err != nil {
		t.Fatalf("NewBcryptHasher: %v", err)
	}
	return hasher
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := newTestHasher(t, 4)

	encoded, err := hasher.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$2a$") {
		t.Fatalf("expected 2a-prefixed hash, got %q", encoded)
	}

	matched, err := hasher.Verify("correct-horse-battery", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !matched {
		t.Fatal("expected password to verify against its own hash")
	}

	matched, err = hasher.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify returned error for mismatch: %v", err)
	}
	if matched {
		t.Fatal("expected mismatch to report false")
	}
}

func TestBcryptHasherCost(t *testing.T) {
	hasher := newTestHasher(t, 5)

	encoded, err := hasher.Hash("some-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	cost, err := hasher.Cost(encoded)
	if err != nil {
		t.Fatalf("Cost returned error: %v", err)
	}
	if cost != 5 {
		t.Fatalf("expected embedded cost 5, got %d", cost)
	}
}

func TestBcryptHasherMalformedHash(t *testing.T) {
	hasher := newTestHasher(t, 4)

	if _, err := hasher.Verify("password", "not-a-bcrypt-hash"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash from Verify, got %v", err)
	}

	if _, err := hasher.Cost("not-a-bcrypt-hash"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash from Cost, got %v", err)
	}
}

func TestBcryptHasherEmptyInputs(t *testing.T) {
	hasher := newTestHasher(t, 4)

	matched, err := hasher.Verify("", "$2a$04$abcdefghijklmnopqrstuv")
	if err != nil {
		t.Fatalf("Verify returned error for empty password: %v", err)
	}
	if matched {
		t.Fatal("empty password must never match")
	}

	matched, err = hasher.Verify("password", "")
	if err != nil {
		t.Fatalf("Verify returned error for empty hash: %v", err)
	}
	if matched {
		t.Fatal("empty hash must never match")
	}
}

func TestBcryptHasherRejectsOversizedPassword(t *testing.T) {
	hasher := newTestHasher(t, 4)

	if _, err := hasher.Hash(strings.Repeat("a", MaxPasswordBytes+1)); err == nil {
		t.Fatal("expected error hashing a password above the byte ceiling")
	}
}

func TestNewBcryptHasherValidatesConfig(t *testing.T) {
	if _, err := NewBcryptHasher(BcryptConfig{Cost: 3}); err == nil {
		t.Fatal("expected error for cost below minimum")
	}
	if _, err := NewBcryptHasher(BcryptConfig{Cost: 10, Version: "2y"}); err == nil {
		t.Fatal("expected error for unsupported minor version")
	}
}
