package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/core/domain"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments and the ops CLI.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountAuthenticated logs account.authenticated events.
func (p *StubPublisher) PublishAccountAuthenticated(_ context.Context, event domain.AccountAuthenticatedEvent) error {
	payload := map[string]any{
		"account_id":       event.AccountID,
		"authenticated_at": event.AuthenticatedAt,
		"hash_rotated":     event.HashRotated,
		"metadata":         event.Metadata,
	}
	p.logEvent(eventAccountAuthenticated, event.AccountID, event.AuthenticatedAt, payload)
	return nil
}

// PublishAuthenticationFailed logs account.login_failed events.
func (p *StubPublisher) PublishAuthenticationFailed(_ context.Context, event domain.AuthenticationFailedEvent) error {
	payload := map[string]any{
		"account_id":        event.AccountID,
		"masked_identifier": event.MaskedIdentifier,
		"failed_at":         event.FailedAt,
		"metadata":          event.Metadata,
	}
	p.logEvent(eventLoginFailed, event.AccountID, event.FailedAt, payload)
	return nil
}

// PublishPasswordChanged logs account.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent(eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishIdentityLinked logs account.identity.linked events.
func (p *StubPublisher) PublishIdentityLinked(_ context.Context, event domain.IdentityLinkedEvent) error {
	payload := map[string]any{
		"account_id":      event.AccountID,
		"subject":         event.Subject,
		"account_created": event.AccountCreated,
		"linked_at":       event.LinkedAt,
		"metadata":        event.Metadata,
	}
	p.logEvent(eventIdentityLinked, event.AccountID, event.LinkedAt, payload)
	return nil
}
