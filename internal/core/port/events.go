package port

import (
	"context"

	"github.com/meridian-id/authcore/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountAuthenticated(ctx context.Context, event domain.AccountAuthenticatedEvent) error
	PublishAuthenticationFailed(ctx context.Context, event domain.AuthenticationFailedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishIdentityLinked(ctx context.Context, event domain.IdentityLinkedEvent) error
}
