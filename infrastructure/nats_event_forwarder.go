package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nationbank/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventStreamName is the JetStream stream holding forwarded ledger events
const EventStreamName = "ledger_events"

// EventEnvelope wraps a forwarded event payload
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventForwarder republishes committed bus events to a message bus as JSON envelopes
type EventForwarder struct {
	publisher MessagePublisher
	prefix    string
	now       func() time.Time
}

// NewEventForwarder creates a forwarder publishing to "<prefix>.<event_type>"
func NewEventForwarder(publisher MessagePublisher, prefix string) *EventForwarder {
	return &EventForwarder{
		publisher: publisher,
		prefix:    prefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subject returns the subject an event type is forwarded to
func (f *EventForwarder) Subject(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", f.prefix, eventType)
}

// Subjects lists every subject the forwarder publishes to
func (f *EventForwarder) Subjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, 0, len(types))
	for _, eventType := range types {
		subjects = append(subjects, f.Subject(eventType))
	}
	return subjects
}

// Forward publishes a single event
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     f.now(),
		SourceService: "nationbank",
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := f.Subject(event.Type())
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to forward event: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event")
	return nil
}

// Attach subscribes the forwarder to every ledger event on the bus
func (f *EventForwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := f.Forward(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to forward event")
		}
	})
}
