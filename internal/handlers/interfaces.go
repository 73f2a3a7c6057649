package handlers

import (
	"context"
	"net/url"

	"sms-support-server/internal/models"
)

// AuthServiceInterface defines the contract for agent login
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

// CustomerServiceInterface defines the contract for customer directory operations
type CustomerServiceInterface interface {
	Create(ctx context.Context, req *models.CreateCustomerRequest) (*models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, error)
	List(ctx context.Context) ([]*models.Customer, error)
	Update(ctx context.Context, id string, update models.CustomerUpdate) (*models.Customer, error)
	Delete(ctx context.Context, id string) error
}

// ConversationServiceInterface defines the contract for conversation operations
type ConversationServiceInterface interface {
	List(ctx context.Context, status string) ([]*models.Conversation, error)
	StartConversation(ctx context.Context, customerID, subject string) (*models.Conversation, error)
	GetWithMessages(ctx context.Context, id string) (*models.ConversationDetail, error)
	SetStatus(ctx context.Context, id, status string) (*models.Conversation, error)
}

// MessageServiceInterface defines the contract for reading messages
type MessageServiceInterface interface {
	ListRecent(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	Get(ctx context.Context, id string) (*models.Message, error)
}

// DeliveryServiceInterface defines the contract for the message pipelines
type DeliveryServiceInterface interface {
	HandleOutbound(ctx context.Context, conversationID, authorID, body string, mediaURLs []string) (*models.Message, error)
	HandleInbound(ctx context.Context, values url.Values) (*models.Message, *models.Conversation, error)
	HandleStatusCallback(ctx context.Context, values url.Values) (*models.Message, error)
}
