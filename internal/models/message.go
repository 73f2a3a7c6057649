package models

import "time"

// SenderType identifies who authored a message
type SenderType string

const (
	SenderAgent    SenderType = "agent"
	SenderCustomer SenderType = "customer"
)

// MessageType is derived from the presence of media
type MessageType string

const (
	MessageTypeSMS MessageType = "sms"
	MessageTypeMMS MessageType = "mms"
)

// MessageStatus tracks delivery state
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageReceived  MessageStatus = "received"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

// Valid reports whether s is a recognized status
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageSent, MessageReceived, MessageDelivered, MessageFailed:
		return true
	}
	return false
}

// TypeForMedia returns mms when any media is attached, sms otherwise
func TypeForMedia(mediaURLs []string) MessageType {
	if len(mediaURLs) > 0 {
		return MessageTypeMMS
	}
	return MessageTypeSMS
}

// Message is one unit of communication inside a conversation.
// Only Status (and UpdatedAt) change after creation.
type Message struct {
	ID                string        `json:"id"`
	ConversationID    string        `json:"conversation_id"`
	SenderID          string        `json:"sender_id"`
	SenderType        SenderType    `json:"sender_type"`
	RecipientPhone    string        `json:"recipient_phone"`
	Body              string        `json:"body"`
	MediaURLs         []string      `json:"media_urls"`
	MessageType       MessageType   `json:"message_type"`
	CarrierDeliveryID *string       `json:"carrier_delivery_id"` // Nil for inbound messages
	Status            MessageStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewMessage holds the fields supplied when appending a message
type NewMessage struct {
	ConversationID    string
	SenderID          string
	SenderType        SenderType
	RecipientPhone    string
	Body              string
	MediaURLs         []string
	CarrierDeliveryID *string
	Status            MessageStatus
}

// SendMessageRequest represents the request body for POST /messages/send
type SendMessageRequest struct {
	ConversationID string   `json:"conversationId"`
	Body           string   `json:"body"`
	MediaURLs      []string `json:"mediaUrls,omitempty"`
}
