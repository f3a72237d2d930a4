package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/infra/config"
)

const schemaVersion = "1.0"

// Event type suffixes; the producer prepends the configured topic prefix.
const (
	eventAccountAuthenticated = "account.authenticated"
	eventLoginFailed          = "account.login_failed"
	eventPasswordChanged      = "account.password.changed"
	eventIdentityLinked       = "account.identity.linked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountAuthenticated publishes account.authenticated events.
func (p *EventPublisher) PublishAccountAuthenticated(ctx context.Context, event domain.AccountAuthenticatedEvent) error {
	payload := struct {
		AccountID       string         `json:"account_id"`
		AuthenticatedAt time.Time      `json:"authenticated_at"`
		HashRotated     bool           `json:"hash_rotated"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:       event.AccountID,
		AuthenticatedAt: event.AuthenticatedAt.UTC(),
		HashRotated:     event.HashRotated,
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountAuthenticated, event.AccountID, event.AuthenticatedAt, payload)
}

// PublishAuthenticationFailed publishes account.login_failed events.
func (p *EventPublisher) PublishAuthenticationFailed(ctx context.Context, event domain.AuthenticationFailedEvent) error {
	payload := struct {
		AccountID        string         `json:"account_id,omitempty"`
		MaskedIdentifier string         `json:"masked_identifier,omitempty"`
		FailedAt         time.Time      `json:"failed_at"`
		Metadata         map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:        event.AccountID,
		MaskedIdentifier: event.MaskedIdentifier,
		FailedAt:         event.FailedAt.UTC(),
		Metadata:         event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventLoginFailed, event.AccountID, event.FailedAt, payload)
}

// PublishPasswordChanged publishes account.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishIdentityLinked publishes account.identity.linked events.
func (p *EventPublisher) PublishIdentityLinked(ctx context.Context, event domain.IdentityLinkedEvent) error {
	payload := struct {
		AccountID      string         `json:"account_id"`
		Subject        string         `json:"subject"`
		AccountCreated bool           `json:"account_created"`
		LinkedAt       time.Time      `json:"linked_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:      event.AccountID,
		Subject:        event.Subject,
		AccountCreated: event.AccountCreated,
		LinkedAt:       event.LinkedAt.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventIdentityLinked, event.AccountID, event.LinkedAt, payload)
}
