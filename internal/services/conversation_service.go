package services

import (
	"context"
	"fmt"
	"strings"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/db"
	"sms-support-server/internal/locks"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/utils"

	"go.uber.org/zap"
)

// ConversationService resolves phone numbers to conversations and manages their status
type ConversationService struct {
	conversations db.ConversationRepository
	messages      db.MessageRepository
	customers     *CustomerService
	locker        locks.Locker
}

// NewConversationService creates a new ConversationService. A nil locker
// falls back to an in-process KeyedMutex.
func NewConversationService(
	conversations db.ConversationRepository,
	messages db.MessageRepository,
	customers *CustomerService,
	locker locks.Locker,
) *ConversationService {
	if locker == nil {
		locker = locks.NewKeyedMutex()
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		customers:     customers,
		locker:        locker,
	}
}

// FindMostRecent returns the most recently updated conversation for phone
// regardless of status, or nil when the phone has none
func (s *ConversationService) FindMostRecent(ctx context.Context, phone string) (*models.Conversation, error) {
	return s.conversations.FindLatestByPhone(ctx, phone)
}

// CreateForCustomer opens a conversation that snapshots the customer's phone and name
func (s *ConversationService) CreateForCustomer(ctx context.Context, customer *models.Customer, subject string, status models.ConversationStatus) (*models.Conversation, error) {
	if customer == nil {
		return nil, apperrors.Validation("customer is required")
	}
	if status == "" {
		status = models.ConversationOpen
	}
	if !status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid status %q", status))
	}
	if strings.TrimSpace(subject) == "" {
		subject = models.DefaultSubject
	}

	customerID := customer.ID
	conversation := &models.Conversation{
		CustomerID:    &customerID,
		CustomerPhone: customer.Phone,
		CustomerName:  customer.Name,
		Subject:       subject,
		Status:        status,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}

	logger.Info("Conversation created",
		zap.String("conversation_id", conversation.ID),
		zap.String("customer_id", customer.ID),
		zap.String("phone", customer.Phone),
	)
	return conversation, nil
}

// ResolveForInbound returns the conversation an inbound message from phone
// belongs to, creating the customer and conversation on first contact.
// Callers for the same phone are serialized so first contact creates
// exactly one of each.
func (s *ConversationService) ResolveForInbound(ctx context.Context, phone string) (*models.Conversation, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, apperrors.Validation("invalid phone number")
	}

	unlock, err := s.locker.Lock(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to lock phone %s: %w", normalized, err)
	}
	defer unlock()

	existing, err := s.FindMostRecent(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	customer, err := s.customers.FindOrCreateByPhone(ctx, normalized, normalized)
	if err != nil {
		return nil, err
	}

	return s.CreateForCustomer(ctx, customer, models.DefaultSubject, models.ConversationOpen)
}

// StartConversation opens an agent-initiated conversation with an existing customer
func (s *ConversationService) StartConversation(ctx context.Context, customerID, subject string) (*models.Conversation, error) {
	if customerID == "" {
		return nil, apperrors.Validation("customerId is required")
	}

	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.CreateForCustomer(ctx, customer, subject, models.ConversationOpen)
}

// Get returns the conversation or a NotFound error
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, apperrors.Validation("conversation ID is required")
	}

	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, apperrors.NotFound("Conversation not found")
	}
	return conversation, nil
}

// GetWithMessages returns the conversation and its whole thread, oldest first
func (s *ConversationService) GetWithMessages(ctx context.Context, id string) (*models.ConversationDetail, error) {
	conversation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	thread, err := s.messages.ListThread(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.ConversationDetail{Conversation: *conversation, Messages: thread}, nil
}

// List returns conversations, most recently active first. An empty status lists all.
func (s *ConversationService) List(ctx context.Context, status string) ([]*models.Conversation, error) {
	filter := models.ConversationStatus(status)
	if status != "" && !filter.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid status %q", status))
	}
	return s.conversations.List(ctx, filter)
}

// SetStatus moves the conversation to status, which must be open or closed
func (s *ConversationService) SetStatus(ctx context.Context, id, status string) (*models.Conversation, error) {
	if id == "" {
		return nil, apperrors.Validation("conversation ID is required")
	}

	next := models.ConversationStatus(status)
	if !next.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid status %q: must be open or closed", status))
	}

	conversation, err := s.conversations.SetStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	logger.Info("Conversation status updated",
		zap.String("conversation_id", id),
		zap.String("status", status),
	)
	return conversation, nil
}

// Reopen marks the conversation open and advances its freshness
func (s *ConversationService) Reopen(ctx context.Context, id string) (*models.Conversation, error) {
	return s.conversations.SetStatus(ctx, id, models.ConversationOpen)
}

// Touch advances the conversation's updated_at
func (s *ConversationService) Touch(ctx context.Context, id string) (*models.Conversation, error) {
	return s.conversations.Touch(ctx, id)
}
