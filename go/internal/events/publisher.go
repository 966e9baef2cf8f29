// Package events publishes room lifecycle events for downstream consumers
// (analytics, leaderboards). Publishing is best effort and never blocks gameplay.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Event is the envelope every published message is wrapped in.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      string          `json:"eventType"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New wraps payload in an envelope with a fresh id.
func New(roomID, eventType string, at time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// LogPublisher only logs events, handy in development.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.Type).
		Str("room_id", event.RoomID).
		Msg("room event")
	return nil
}

// NATSPublisher publishes events to a JetStream stream.
type NATSPublisher struct {
	js            jetstream.JetStream
	subjectPrefix string
}

// NewNATSPublisher makes sure a stream capturing <subjectPrefix>.> exists.
func NewNATSPublisher(ctx context.Context, js jetstream.JetStream, stream, subjectPrefix string) (*NATSPublisher, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "room lifecycle events",
		Subjects:    []string{subjectPrefix + ".>"},
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", stream, err)
	}
	return &NATSPublisher{js: js, subjectPrefix: subjectPrefix}, nil
}

// Subject returns <prefix>.<roomId>.<eventType>.
func Subject(prefix string, event Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.RoomID, event.Type)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.subjectPrefix, event)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID.String())); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID.String()).
		Int("size", len(data)).
		Msg("published room event")
	return nil
}
