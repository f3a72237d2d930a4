package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/core/port"
	"github.com/meridian-id/authcore/internal/repository"
)

type nowFunc func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// ErrAccountNotFound indicates the password-change target does not exist.
// Unlike authentication, password management is an authenticated surface,
// so revealing existence is acceptable here.
var ErrAccountNotFound = errors.New("account not found")

// PasswordService sets and replaces local passwords. A password write
// participates in the same epoch protocol as authentication: in-flight
// logins that read the account before the change fail their CAS and must
// retry against the updated state.
type PasswordService struct {
	store  port.CredentialStore
	hasher port.PasswordHasher
	policy port.PasswordPolicyValidator
	breach port.BreachChecker
	events port.EventPublisher
	log    *zap.Logger
	now    nowFunc
}

// NewPasswordService constructs a password management service.
func NewPasswordService(
	store port.CredentialStore,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	breach port.BreachChecker,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		store:  store,
		hasher: hasher,
		policy: policy,
		breach: breach,
		events: events,
		log:    log,
		now:    utcNow,
	}
}

// ChangePassword validates the new password against the policy, hashes it
// at the target cost, and applies it with a single epoch-conditioned
// write. Policy violations come back as *security.PasswordValidationError
// so callers can render the specific code.
func (s *PasswordService) ChangePassword(ctx context.Context, identifier, newPassword string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	account, err := s.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.policy.Validate(newPassword, domain.PasswordContext{Email: account.Email}); err != nil {
		return err
	}

	encoded, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	patch := domain.AccountPatch{
		PasswordHash:      &encoded,
		AdvanceLoginEpoch: true,
	}
	affected, err := s.store.ConditionalUpdate(ctx, account.ID, account.LoginEpoch, patch)
	if err != nil {
		return fmt.Errorf("persist password: %w", err)
	}
	if affected == 0 {
		return ErrParallelLogin
	}

	s.log.Info("password changed", zap.String("account_id", account.ID))

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			AccountID: account.ID,
			ChangedAt: s.now(),
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.log.Warn("publish password changed event failed", zap.Error(err))
		}
	}

	if s.breach != nil {
		s.breach.CheckInBackground(newPassword)
	}

	return nil
}
