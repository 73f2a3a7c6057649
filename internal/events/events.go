// Package events announces message activity to other services over AMQP.
package events

import (
	"context"
	"time"

	"sms-support-server/internal/models"

	"github.com/google/uuid"
)

// Event types, also used as routing keys
const (
	TypeMessageSent          = "message.sent.v1"
	TypeMessageReceived      = "message.received.v1"
	TypeMessageStatusChanged = "message.status_changed.v1"
)

const producer = "sms-support-server"

// Meta describes an emitted event
type Meta struct {
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps every published payload
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// MessageEvent is the payload of message events
type MessageEvent struct {
	Message        *models.Message `json:"message"`
	ConversationID string          `json:"conversation_id"`
	CustomerPhone  string          `json:"customer_phone"`
}

// Publisher delivers envelopes to interested services
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// NewEnvelope stamps data with a fresh ID and time
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: producer,
			Time:     time.Now().UTC(),
			Type:     eventType,
		},
		Data: data,
	}
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Envelope) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
