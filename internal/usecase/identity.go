package usecase

import (
	"context"
	"errors"
	"fmt"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/core/port"
	"github.com/meridian-id/authcore/internal/infra/security"
	"github.com/meridian-id/authcore/internal/repository"
)

// Byte length of the random placeholder password generated for accounts
// created from external identity claims. The plaintext is discarded
// immediately, so password login stays impossible until a real password
// is set.
const placeholderPasswordBytes = 32

// IdentityService reconciles external identity claims with local accounts.
type IdentityService struct {
	store     port.CredentialStore
	registrar port.Registrar
	events    port.EventPublisher
	log       *zap.Logger
	now       nowFunc
}

// NewIdentityService constructs an identity linking service.
func NewIdentityService(store port.CredentialStore, registrar port.Registrar, events port.EventPublisher, log *zap.Logger) *IdentityService {
	return &IdentityService{
		store:     store,
		registrar: registrar,
		events:    events,
		log:       log,
		now:       utcNow,
	}
}

// LinkOrCreate resolves the claims' subject identifier to a local account,
// creating one through the registration collaborator when none exists.
// The subject is the dedup key, never the email: repeated calls with the
// same subject converge on one account even when the upstream email
// changes. The second and later calls only refresh mutable profile fields.
func (s *IdentityService) LinkOrCreate(ctx context.Context, claims domain.ExternalClaims) (*domain.Account, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("subject identifier is required")
	}

	account, err := s.store.FindByExternalID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.createAndLink(ctx, claims)
		}
		return nil, fmt.Errorf("lookup account by external id: %w", err)
	}

	return s.refreshProfile(ctx, account, claims)
}

func (s *IdentityService) createAndLink(ctx context.Context, claims domain.ExternalClaims) (*domain.Account, error) {
	placeholder, err := security.GenerateSecureToken(placeholderPasswordBytes)
	if err != nil {
		return nil, fmt.Errorf("generate placeholder password: %w", err)
	}

	account, err := s.registrar.RegisterNewUser(ctx, domain.RegistrationProfile{
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Password:   placeholder,
	})
	if err != nil {
		return nil, fmt.Errorf("register external account: %w", err)
	}

	// One write carries the whole link: the provider has vouched for the
	// email, and the subject claim becomes the account's lookup key.
	confirmed := true
	patch := domain.AccountPatch{
		EmailConfirmed: &confirmed,
		AddExternalID:  &claims.Subject,
	}
	if _, err := s.store.Update(ctx, account.ID, patch); err != nil {
		return nil, fmt.Errorf("link external identity: %w", err)
	}

	account.EmailConfirmed = true
	account.ExternalIDs = append(account.ExternalIDs, claims.Subject)

	s.log.Info("external account created",
		zap.String("account_id", account.ID),
		zap.String("subject", claims.Subject),
	)
	s.publishLinked(ctx, account.ID, claims.Subject, true)

	return account, nil
}

func (s *IdentityService) refreshProfile(ctx context.Context, account *domain.Account, claims domain.ExternalClaims) (*domain.Account, error) {
	patch := domain.AccountPatch{}
	if claims.Email != "" && claims.Email != account.Email {
		patch.Email = &claims.Email
	}
	if claims.GivenName != account.GivenName {
		patch.GivenName = &claims.GivenName
	}
	if claims.FamilyName != account.FamilyName {
		patch.FamilyName = &claims.FamilyName
	}

	if !patch.IsZero() {
		if _, err := s.store.Update(ctx, account.ID, patch); err != nil {
			return nil, fmt.Errorf("refresh linked profile: %w", err)
		}

		if patch.Email != nil {
			account.Email = *patch.Email
		}
		account.GivenName = claims.GivenName
		account.FamilyName = claims.FamilyName
	}

	s.publishLinked(ctx, account.ID, claims.Subject, false)

	return account, nil
}

func (s *IdentityService) publishLinked(ctx context.Context, accountID, subject string, created bool) {
	if s.events == nil {
		return
	}

	event := domain.IdentityLinkedEvent{
		EventID:        uuid.NewString(),
		AccountID:      accountID,
		Subject:        subject,
		AccountCreated: created,
		LinkedAt:       s.now(),
	}
	if err := s.events.PublishIdentityLinked(ctx, event); err != nil {
		s.log.Warn("publish identity linked event failed", zap.Error(err))
	}
}
