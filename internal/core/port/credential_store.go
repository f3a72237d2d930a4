package port

import (
	"context"

	"github.com/meridian-id/authcore/internal/core/domain"
)

// CredentialStore exposes the only storage surface the authentication core
// mutates accounts through. Implementations are expected to live in a
// replicated, non-transactional store; cross-request coordination relies
// solely on ConditionalUpdate's epoch check.
type CredentialStore interface {
	// FindByIdentifier resolves an account by its login identifier.
	// Returns repository.ErrNotFound when no account matches.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)

	// FindByExternalID resolves an account owning the external subject identifier.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Account, error)

	// ConditionalUpdate applies the patch only if the stored login epoch
	// still equals expectedEpoch. Returns the number of affected rows (0 or 1);
	// zero means a concurrent attempt advanced the epoch first.
	ConditionalUpdate(ctx context.Context, accountID string, expectedEpoch int64, patch domain.AccountPatch) (int64, error)

	// Update applies the patch unconditionally. Reserved for writes that
	// follow a successful ConditionalUpdate in the same logical attempt,
	// such as hash-rotation persistence.
	Update(ctx context.Context, accountID string, patch domain.AccountPatch) (int64, error)

	// Create persists a new account and returns the stored representation.
	Create(ctx context.Context, account domain.Account) (*domain.Account, error)
}
