package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "authcore",
		},
		done: make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "authcore",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, asyncProducer *fakeAsyncProducer, wantTopic string) map[string]any {
	t.Helper()

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != wantTopic {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
		return nil
	}
}

func TestPublishAccountAuthenticated(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	authenticatedAt := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	event := domain.AccountAuthenticatedEvent{
		EventID:         "event-123",
		AccountID:       "acct-456",
		AuthenticatedAt: authenticatedAt,
		HashRotated:     true,
		Metadata:        map[string]any{"source": "unit-test"},
	}

	if err := publisher.PublishAccountAuthenticated(context.Background(), event); err != nil {
		t.Fatalf("PublishAccountAuthenticated returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "authcore.account.authenticated")

	if got := envelope["event_type"]; got != "account.authenticated" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != event.EventID {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["account_id"]; got != event.AccountID {
		t.Fatalf("unexpected account_id: %v", got)
	}
	if got := envelope["version"]; got != schemaVersion {
		t.Fatalf("unexpected version: %v", got)
	}

	timestamp, ok := envelope["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
	}
	if timestamp != authenticatedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %s", timestamp)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["account_id"]; got != event.AccountID {
		t.Fatalf("unexpected payload.account_id: %v", got)
	}
	if rotated, _ := payload["hash_rotated"].(bool); !rotated {
		t.Fatalf("expected hash_rotated true, got %v", payload["hash_rotated"])
	}

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("payload metadata not a map: %T", payload["metadata"])
	}
	if metadata["source"] != "unit-test" {
		t.Fatalf("metadata did not round-trip: %v", metadata)
	}

	envelopeMetadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if envelopeMetadata["service"] != "authcore" {
		t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
	}
	if envelopeMetadata["environment"] != "test" {
		t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
	}
}

func TestPublishAuthenticationFailed(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	failedAt := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	event := domain.AuthenticationFailedEvent{
		EventID:          "event-222",
		MaskedIdentifier: "u***@example.com",
		FailedAt:         failedAt,
	}

	if err := publisher.PublishAuthenticationFailed(context.Background(), event); err != nil {
		t.Fatalf("PublishAuthenticationFailed returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "authcore.account.login_failed")

	if got := envelope["event_type"]; got != "account.login_failed" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if _, present := envelope["account_id"]; present {
		t.Fatalf("anonymous failure must omit account_id, got %v", envelope["account_id"])
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["masked_identifier"]; got != event.MaskedIdentifier {
		t.Fatalf("unexpected masked_identifier: %v", got)
	}
}

func TestPublishIdentityLinked(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	linkedAt := time.Date(2026, 8, 30, 12, 45, 0, 0, time.UTC)
	event := domain.IdentityLinkedEvent{
		EventID:        "event-333",
		AccountID:      "acct-456",
		Subject:        "provider|abc",
		AccountCreated: true,
		LinkedAt:       linkedAt,
	}

	if err := publisher.PublishIdentityLinked(context.Background(), event); err != nil {
		t.Fatalf("PublishIdentityLinked returned error: %v", err)
	}

	envelope := receiveEnvelope(t, asyncProducer, "authcore.account.identity.linked")

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["subject"]; got != event.Subject {
		t.Fatalf("unexpected subject: %v", got)
	}
	if created, _ := payload["account_created"].(bool); !created {
		t.Fatalf("expected account_created true, got %v", payload["account_created"])
	}
	if got, _ := payload["linked_at"].(string); got != linkedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected linked_at: %v", got)
	}
}
