package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/meridian-id/authcore/internal/infra/security"
)

func newTestPasswordService(store *stubStore, hasher *security.BcryptHasher, breach *stubBreachChecker, events *recordingPublisher, t *testing.T) *PasswordService {
	policy := security.NewPasswordPolicy(security.DefaultPolicyConfig())
	return NewPasswordService(store, hasher, policy, breach, events, zaptest.NewLogger(t))
}

func TestChangePasswordSuccess(t *testing.T) {
	hasher := testHasher(t, 4)
	account := testAccount(t, hasher, "old-password-1")
	store := newStubStore(account)
	breach := &stubBreachChecker{}
	events := &recordingPublisher{}
	service := newTestPasswordService(store, hasher, breach, events, t)

	if err := service.ChangePassword(context.Background(), "user@example.com", "brand-new-secret"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	stored := store.get("acct-1")
	if stored.LoginEpoch != 8 {
		t.Fatalf("password change must advance the epoch, got %d", stored.LoginEpoch)
	}

	matched, err := hasher.Verify("brand-new-secret", stored.Password.Value)
	if err != nil || !matched {
		t.Fatalf("new password must verify (matched=%t err=%v)", matched, err)
	}
	if matched, _ := hasher.Verify("old-password-1", stored.Password.Value); matched {
		t.Fatal("old password must no longer verify")
	}

	if len(events.changed) != 1 {
		t.Fatalf("expected 1 password changed event, got %d", len(events.changed))
	}
	if breach.count() != 1 {
		t.Fatalf("expected 1 breach check, got %d", breach.count())
	}
}

func TestChangePasswordPolicyViolation(t *testing.T) {
	hasher := testHasher(t, 4)
	account := testAccount(t, hasher, "old-password-1")
	store := newStubStore(account)
	service := newTestPasswordService(store, hasher, &stubBreachChecker{}, &recordingPublisher{}, t)

	err := service.ChangePassword(context.Background(), "user@example.com", "abc")

	var violation *security.PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != security.CodeTooShort {
		t.Fatalf("expected code %q, got %q", security.CodeTooShort, violation.Code)
	}
	if store.conditionalCalls != 0 {
		t.Fatal("policy violation must not reach the store")
	}
}

func TestChangePasswordRejectsOwnEmail(t *testing.T) {
	hasher := testHasher(t, 4)
	account := testAccount(t, hasher, "old-password-1")
	store := newStubStore(account)
	service := newTestPasswordService(store, hasher, &stubBreachChecker{}, &recordingPublisher{}, t)

	err := service.ChangePassword(context.Background(), "user@example.com", "xx-user@example.com-xx")

	var violation *security.PasswordValidationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if violation.Code != security.CodeContainsEmail {
		t.Fatalf("expected code %q, got %q", security.CodeContainsEmail, violation.Code)
	}
}

func TestChangePasswordParallelConflict(t *testing.T) {
	hasher := testHasher(t, 4)
	account := testAccount(t, hasher, "old-password-1")
	store := newStubStore(account)
	service := newTestPasswordService(store, hasher, &stubBreachChecker{}, &recordingPublisher{}, t)

	// A login lands between the read and the conditioned write.
	store.afterFind = func() {
		store.accounts["acct-1"].LoginEpoch++
		store.afterFind = nil
	}

	err := service.ChangePassword(context.Background(), "user@example.com", "brand-new-secret")
	if !errors.Is(err, ErrParallelLogin) {
		t.Fatalf("expected ErrParallelLogin, got %v", err)
	}

	if matched, _ := hasher.Verify("old-password-1", store.get("acct-1").Password.Value); !matched {
		t.Fatal("losing change must leave the old password in place")
	}
}

func TestChangePasswordUnknownAccount(t *testing.T) {
	hasher := testHasher(t, 4)
	service := newTestPasswordService(newStubStore(), hasher, &stubBreachChecker{}, &recordingPublisher{}, t)

	err := service.ChangePassword(context.Background(), "missing@example.com", "brand-new-secret")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
