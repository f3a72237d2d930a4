package port

import (
	"context"

	"github.com/meridian-id/authcore/internal/core/domain"
)

// Registrar is the external registration collaborator invoked when a
// first-seen external identity claim requires a local account.
type Registrar interface {
	RegisterNewUser(ctx context.Context, profile domain.RegistrationProfile) (*domain.Account, error)
}
