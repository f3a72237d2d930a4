package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/meridian-id/authcore/internal/core/domain"
)

type stubRegistrar struct {
	store *stubStore
	calls int
	err   error
}

func (r *stubRegistrar) RegisterNewUser(ctx context.Context, profile domain.RegistrationProfile) (*domain.Account, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}

	account := domain.Account{
		ID:           "reg-1",
		Email:        profile.Email,
		GivenName:    profile.GivenName,
		FamilyName:   profile.FamilyName,
		RegisteredAt: time.Now().UTC(),
	}
	return r.store.Create(ctx, account)
}

func sampleClaims() domain.ExternalClaims {
	return domain.ExternalClaims{
		Subject:    "provider|abc123",
		Email:      "claimed@example.com",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	}
}

func TestLinkOrCreateCreatesAccount(t *testing.T) {
	store := newStubStore()
	registrar := &stubRegistrar{store: store}
	events := &recordingPublisher{}
	service := NewIdentityService(store, registrar, events, zaptest.NewLogger(t))

	account, err := service.LinkOrCreate(context.Background(), sampleClaims())
	if err != nil {
		t.Fatalf("LinkOrCreate returned error: %v", err)
	}

	if registrar.calls != 1 {
		t.Fatalf("expected registrar to be invoked once, got %d", registrar.calls)
	}
	if !account.EmailConfirmed {
		t.Fatal("provider-vouched email must be marked confirmed")
	}
	if !account.HasExternalID("provider|abc123") {
		t.Fatal("subject identifier must be linked")
	}
	if account.Password.Valid {
		// The registrar stub never stores the placeholder hash, mirroring
		// an account that stays external-identity-only.
		t.Fatal("no local password expected on the test account")
	}
	if len(events.linked) != 1 || !events.linked[0].AccountCreated {
		t.Fatalf("expected one created-link event, got %+v", events.linked)
	}
}

func TestLinkOrCreateIsIdempotent(t *testing.T) {
	store := newStubStore()
	registrar := &stubRegistrar{store: store}
	service := NewIdentityService(store, registrar, &recordingPublisher{}, zaptest.NewLogger(t))

	claims := sampleClaims()
	first, err := service.LinkOrCreate(context.Background(), claims)
	if err != nil {
		t.Fatalf("first LinkOrCreate returned error: %v", err)
	}

	second, err := service.LinkOrCreate(context.Background(), claims)
	if err != nil {
		t.Fatalf("second LinkOrCreate returned error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the same account, got %q and %q", first.ID, second.ID)
	}
	if registrar.calls != 1 {
		t.Fatalf("second call must not register again, got %d calls", registrar.calls)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("expected exactly one stored account, got %d", len(store.accounts))
	}
}

func TestLinkOrCreateUpdatesProfileOnEmailChange(t *testing.T) {
	store := newStubStore()
	registrar := &stubRegistrar{store: store}
	service := NewIdentityService(store, registrar, &recordingPublisher{}, zaptest.NewLogger(t))

	claims := sampleClaims()
	if _, err := service.LinkOrCreate(context.Background(), claims); err != nil {
		t.Fatalf("LinkOrCreate returned error: %v", err)
	}

	// The upstream email changed; the subject stays the dedup key.
	claims.Email = "renamed@example.com"
	claims.FamilyName = "Byron"
	account, err := service.LinkOrCreate(context.Background(), claims)
	if err != nil {
		t.Fatalf("LinkOrCreate after change returned error: %v", err)
	}

	if account.Email != "renamed@example.com" {
		t.Fatalf("expected refreshed email, got %q", account.Email)
	}
	if account.FamilyName != "Byron" {
		t.Fatalf("expected refreshed family name, got %q", account.FamilyName)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("expected exactly one stored account, got %d", len(store.accounts))
	}

	stored := store.get("reg-1")
	if stored.Email != "renamed@example.com" {
		t.Fatalf("expected store to carry the refreshed email, got %q", stored.Email)
	}
}

func TestLinkOrCreateRegistrarFailure(t *testing.T) {
	store := newStubStore()
	registrar := &stubRegistrar{store: store, err: errors.New("registration backend down")}
	service := NewIdentityService(store, registrar, &recordingPublisher{}, zaptest.NewLogger(t))

	_, err := service.LinkOrCreate(context.Background(), sampleClaims())
	if err == nil {
		t.Fatal("expected registrar failure to surface")
	}
	if len(store.accounts) != 0 {
		t.Fatal("nothing must be persisted when registration fails")
	}
}

func TestLinkOrCreateRequiresSubject(t *testing.T) {
	service := NewIdentityService(newStubStore(), &stubRegistrar{}, nil, zaptest.NewLogger(t))

	if _, err := service.LinkOrCreate(context.Background(), domain.ExternalClaims{Email: "x@y.com"}); err == nil {
		t.Fatal("expected error for missing subject")
	}
}
