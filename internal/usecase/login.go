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
	"github.com/meridian-id/authcore/internal/infra/logger"
	"github.com/meridian-id/authcore/internal/infra/telemetry"
	"github.com/meridian-id/authcore/internal/repository"
)

var (
	// ErrAuthenticationFailed covers both unknown accounts and wrong
	// passwords. The two cases are deliberately indistinguishable so the
	// error surface leaks no account-existence signal.
	ErrAuthenticationFailed = errors.New("invalid credentials")
	// ErrParallelLogin indicates a concurrent attempt advanced the account's
	// login epoch first. Retryable: the caller re-reads and may re-attempt.
	// This layer never retries on its own; an automatic retry loop would
	// turn contention into a measurable timing signal.
	ErrParallelLogin = errors.New("parallel login conflict")
)

// LoginService orchestrates password authentication end-to-end: lookup,
// verification, the epoch-guarded state write, lazy hash-cost migration,
// and the background breach check.
type LoginService struct {
	store         port.CredentialStore
	hasher        port.PasswordHasher
	breach        port.BreachChecker
	events        port.EventPublisher
	metrics       *telemetry.Metrics
	log           *zap.Logger
	targetCost    int
	disableRehash bool
	now           func() time.Time
}

// NewLoginService constructs a login service. breach, events, and metrics
// may be nil; the corresponding side effects are then skipped.
func NewLoginService(
	store port.CredentialStore,
	hasher port.PasswordHasher,
	breach port.BreachChecker,
	events port.EventPublisher,
	metrics *telemetry.Metrics,
	log *zap.Logger,
	targetCost int,
	disableRehash bool,
) *LoginService {
	return &LoginService{
		store:         store,
		hasher:        hasher,
		breach:        breach,
		events:        events,
		metrics:       metrics,
		log:           log,
		targetCost:    targetCost,
		disableRehash: disableRehash,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate verifies the identifier/password pair and, when it reaches
// the write step, applies exactly one epoch-conditioned update. Every
// state-changing effect of the attempt is gated on that single CAS, which
// makes concurrent attempts against the same stale read single-writer-wins
// across independent server instances.
func (s *LoginService) Authenticate(ctx context.Context, identifier, password string) (*domain.Account, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	account, err := s.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observe(telemetry.OutcomeFailure)
			s.publishFailure(identifier, "")
			return nil, ErrAuthenticationFailed
		}
		s.observe(telemetry.OutcomeError)
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	// External-identity-only accounts have no local password; password
	// authentication must fail for them regardless of input, with the
	// same generic error an unknown account produces.
	if !account.Password.Valid {
		s.observe(telemetry.OutcomeFailure)
		s.publishFailure(identifier, account.ID)
		return nil, ErrAuthenticationFailed
	}

	matched, err := s.verify(password, account.Password.Value)
	if err != nil {
		s.observe(telemetry.OutcomeError)
		return nil, fmt.Errorf("verify password: %w", err)
	}

	// The epoch advances whether or not the password matched. A failed
	// match still consumes the epoch value observed at read time, closing
	// the window where a stale read could later apply effects, and stamps
	// last_failed_login for upstream throttling layers.
	now := s.now()
	patch := domain.AccountPatch{AdvanceLoginEpoch: true}
	if !matched {
		patch.LastFailedLogin = &now
	}

	affected, err := s.store.ConditionalUpdate(ctx, account.ID, account.LoginEpoch, patch)
	if err != nil {
		s.observe(telemetry.OutcomeError)
		return nil, fmt.Errorf("advance login epoch: %w", err)
	}
	if affected == 0 {
		s.observe(telemetry.OutcomeParallelConflict)
		s.log.Debug("login epoch already advanced",
			zap.String("account_id", account.ID),
			zap.Int64("observed_epoch", account.LoginEpoch),
		)
		return nil, ErrParallelLogin
	}

	account.LoginEpoch++

	if !matched {
		account.LastFailedLogin = &now
		s.observe(telemetry.OutcomeFailure)
		s.publishFailure(identifier, account.ID)
		s.log.Info("authentication failed",
			zap.String("identifier", logger.MaskEmail(identifier)),
		)
		return nil, ErrAuthenticationFailed
	}

	rotated, err := s.maybeRotateHash(ctx, account, password)
	if err != nil {
		s.observe(telemetry.OutcomeError)
		return nil, err
	}

	s.observe(telemetry.OutcomeSuccess)
	s.log.Info("authentication succeeded",
		zap.String("account_id", account.ID),
		zap.Bool("hash_rotated", rotated),
	)

	if s.events != nil {
		event := domain.AccountAuthenticatedEvent{
			EventID:         uuid.NewString(),
			AccountID:       account.ID,
			AuthenticatedAt: now,
			HashRotated:     rotated,
		}
		if err := s.events.PublishAccountAuthenticated(ctx, event); err != nil {
			s.log.Warn("publish authenticated event failed", zap.Error(err))
		}
	}

	if s.breach != nil {
		s.breach.CheckInBackground(password)
	}

	sanitized := *account
	sanitized.Password = domain.PasswordHash{}
	return &sanitized, nil
}

// maybeRotateHash upgrades the stored hash to the target cost after a
// successful match. The write is unconditioned: the preceding epoch CAS
// already serialized this attempt, so no concurrent login can hold the
// same epoch value.
func (s *LoginService) maybeRotateHash(ctx context.Context, account *domain.Account, password string) (bool, error) {
	if s.disableRehash {
		return false, nil
	}

	cost, err := s.hasher.Cost(account.Password.Value)
	if err != nil {
		return false, fmt.Errorf("inspect hash cost: %w", err)
	}
	if cost >= s.targetCost {
		return false, nil
	}

	fresh, err := s.hash(password)
	if err != nil {
		return false, fmt.Errorf("rehash password: %w", err)
	}

	if _, err := s.store.Update(ctx, account.ID, domain.AccountPatch{PasswordHash: &fresh}); err != nil {
		return false, fmt.Errorf("persist rotated hash: %w", err)
	}

	account.Password = domain.NewPasswordHash(fresh)
	if s.metrics != nil {
		s.metrics.ObserveHashRotation()
	}
	s.log.Info("password hash rotated",
		zap.String("account_id", account.ID),
		zap.Int("previous_cost", cost),
		zap.Int("target_cost", s.targetCost),
	)

	return true, nil
}

func (s *LoginService) verify(password, encoded string) (bool, error) {
	start := time.Now()
	matched, err := s.hasher.Verify(password, encoded)
	if s.metrics != nil {
		s.metrics.ObserveHashDuration(time.Since(start).Seconds())
	}
	return matched, err
}

func (s *LoginService) hash(password string) (string, error) {
	start := time.Now()
	encoded, err := s.hasher.Hash(password)
	if s.metrics != nil {
		s.metrics.ObserveHashDuration(time.Since(start).Seconds())
	}
	return encoded, err
}

func (s *LoginService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}

func (s *LoginService) publishFailure(identifier, accountID string) {
	if s.events == nil {
		return
	}

	event := domain.AuthenticationFailedEvent{
		EventID:          uuid.NewString(),
		AccountID:        accountID,
		MaskedIdentifier: logger.MaskEmail(identifier),
		FailedAt:         s.now(),
	}
	// Publishing is detached from the request context: the failure result
	// has already been determined and must not block on the bus.
	if err := s.events.PublishAuthenticationFailed(context.Background(), event); err != nil {
		s.log.Warn("publish login failed event failed", zap.Error(err))
	}
}
