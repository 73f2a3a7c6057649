package services

import (
	"context"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/db"
	"sms-support-server/internal/models"
)

const (
	// DefaultPageSize is the page size used when none is requested
	DefaultPageSize = 50

	// MaxPageSize caps a single page of messages
	MaxPageSize = 200
)

// MessageService reads stored messages
type MessageService struct {
	messages      db.MessageRepository
	conversations db.ConversationRepository
}

// NewMessageService creates a new MessageService instance
func NewMessageService(messages db.MessageRepository, conversations db.ConversationRepository) *MessageService {
	return &MessageService{messages: messages, conversations: conversations}
}

// ListRecent returns a page of a conversation's messages, newest first
func (s *MessageService) ListRecent(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	if conversationID == "" {
		return nil, apperrors.Validation("conversation ID is required")
	}
	if limit < 0 || offset < 0 {
		return nil, apperrors.Validation("limit and offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, apperrors.NotFound("Conversation not found")
	}

	return s.messages.ListByConversation(ctx, conversationID, limit, offset)
}

// Get returns the message or a NotFound error
func (s *MessageService) Get(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, apperrors.Validation("message ID is required")
	}

	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperrors.NotFound("Message not found")
	}
	return msg, nil
}
