package models

import "time"

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// DefaultSubject is the subject of conversations opened by an inbound message
const DefaultSubject = "Support Request"

// Valid reports whether s is a recognized status
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationClosed:
		return true
	}
	return false
}

// Conversation is a thread of messages with one customer phone number.
// CustomerPhone and CustomerName are snapshots taken at creation.
type Conversation struct {
	ID            string             `json:"id"`
	CustomerID    *string            `json:"customer_id"` // Nil once the customer record is deleted
	CustomerPhone string             `json:"customer_phone"`
	CustomerName  string             `json:"customer_name"`
	Subject       string             `json:"subject"`
	Status        ConversationStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"` // Advances on every appended message
}

// ConversationDetail is a conversation with its full thread, oldest first
type ConversationDetail struct {
	Conversation
	Messages []*Message `json:"messages"`
}

// StartConversationRequest represents the request body for an agent-initiated thread
type StartConversationRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	Subject    string `json:"subject" binding:"max=255"`
}

// UpdateConversationRequest represents the request body for updating a conversation.
// Status is the only mutable field.
type UpdateConversationRequest struct {
	Status string `json:"status"`
}
