package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/carrier"
	"sms-support-server/internal/db"
	"sms-support-server/internal/events"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultSendTimeout  = 10 * time.Second
	eventPublishTimeout = 3 * time.Second
)

// Fanout pushes a stored message to the sessions watching its conversation
type Fanout interface {
	Publish(conversationID string, msg *models.Message) int
}

// DeliveryService runs the inbound and outbound message flows. It keeps no
// state of its own.
type DeliveryService struct {
	conversations *ConversationService
	messages      db.MessageRepository
	gateway       carrier.Gateway
	fanout        Fanout
	events        events.Publisher
	sendTimeout   time.Duration
}

// NewDeliveryService creates a DeliveryService. publisher may be nil.
func NewDeliveryService(
	conversations *ConversationService,
	messages db.MessageRepository,
	gateway carrier.Gateway,
	fanout Fanout,
	publisher events.Publisher,
	sendTimeout time.Duration,
) *DeliveryService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &DeliveryService{
		conversations: conversations,
		messages:      messages,
		gateway:       gateway,
		fanout:        fanout,
		events:        publisher,
		sendTimeout:   sendTimeout,
	}
}

// HandleOutbound sends an agent's message to the conversation's customer.
// Nothing is stored unless the carrier accepted the message, and
// subscribers are only notified once it is stored.
func (s *DeliveryService) HandleOutbound(ctx context.Context, conversationID, authorID, body string, mediaURLs []string) (*models.Message, error) {
	if conversationID == "" {
		return nil, apperrors.Validation("conversationId is required")
	}
	if strings.TrimSpace(body) == "" && len(mediaURLs) == 0 {
		return nil, apperrors.Validation("body or mediaUrls is required")
	}

	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	result, err := s.gateway.Send(sendCtx, conversation.CustomerPhone, body, mediaURLs)
	cancel()
	if err != nil {
		if _, ok := apperrors.KindOf(err); !ok {
			err = apperrors.Gateway("carrier send failed", err)
		}
		logger.Error("Outbound send failed",
			zap.String("conversation_id", conversationID),
			zap.String("phone", conversation.CustomerPhone),
			zap.Error(err),
		)
		return nil, err
	}

	deliveryID := result.DeliveryID
	msg, err := s.messages.Append(ctx, &models.NewMessage{
		ConversationID:    conversation.ID,
		SenderID:          authorID,
		SenderType:        models.SenderAgent,
		RecipientPhone:    conversation.CustomerPhone,
		Body:              body,
		MediaURLs:         mediaURLs,
		CarrierDeliveryID: &deliveryID,
		Status:            models.MessageSent,
	})
	if err != nil {
		logger.Error("Failed to store sent message",
			zap.String("conversation_id", conversationID),
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
		return nil, err
	}

	// The carrier already accepted the message; failing here would invite a
	// retry that sends it twice.
	if _, err := s.conversations.Touch(ctx, conversation.ID); err != nil {
		logger.Error("Failed to touch conversation after send",
			zap.String("conversation_id", conversation.ID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	s.fanout.Publish(conversation.ID, msg)
	s.announce(events.TypeMessageSent, msg, conversation.CustomerPhone)

	logger.Info("Outbound message sent",
		zap.String("conversation_id", conversation.ID),
		zap.String("message_id", msg.ID),
		zap.String("delivery_id", deliveryID),
	)
	return msg, nil
}

// HandleInbound stores a message received by the carrier webhook and
// reopens its conversation. A malformed payload creates nothing.
func (s *DeliveryService) HandleInbound(ctx context.Context, values url.Values) (*models.Message, *models.Conversation, error) {
	in, err := carrier.ParseInbound(values)
	if err != nil {
		logger.Warn("Rejected inbound webhook", zap.Error(err))
		return nil, nil, err
	}

	conversation, err := s.conversations.ResolveForInbound(ctx, in.FromPhone)
	if err != nil {
		return nil, nil, err
	}

	msg, err := s.messages.Append(ctx, &models.NewMessage{
		ConversationID: conversation.ID,
		SenderID:       in.FromPhone,
		SenderType:     models.SenderCustomer,
		RecipientPhone: in.ToPhone,
		Body:           in.Body,
		MediaURLs:      in.MediaURLs,
		Status:         models.MessageReceived,
	})
	if err != nil {
		return nil, nil, err
	}

	conversation, err = s.conversations.Reopen(ctx, conversation.ID)
	if err != nil {
		return nil, nil, err
	}

	s.fanout.Publish(conversation.ID, msg)
	s.announce(events.TypeMessageReceived, msg, conversation.CustomerPhone)

	logger.Info("Inbound message received",
		zap.String("conversation_id", conversation.ID),
		zap.String("message_id", msg.ID),
		zap.String("phone", in.FromPhone),
		zap.String("carrier_sid", in.DeliveryID),
	)
	return msg, conversation, nil
}

// HandleStatusCallback records a delivery status reported by the carrier
func (s *DeliveryService) HandleStatusCallback(ctx context.Context, values url.Values) (*models.Message, error) {
	callback, err := carrier.ParseStatusCallback(values)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.GetByCarrierDeliveryID(ctx, callback.DeliveryID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperrors.NotFound("Message not found")
	}

	if msg.Status == callback.Status {
		return msg, nil
	}

	updated, err := s.messages.UpdateStatus(ctx, msg.ID, callback.Status)
	if err != nil {
		return nil, err
	}

	s.announce(events.TypeMessageStatusChanged, updated, updated.RecipientPhone)

	logger.Info("Message status updated",
		zap.String("message_id", updated.ID),
		zap.String("delivery_id", callback.DeliveryID),
		zap.String("carrier_status", callback.CarrierStatus),
		zap.String("error_code", callback.ErrorCode),
	)
	return updated, nil
}

// announce publishes an integration event. Failures are logged and otherwise ignored.
func (s *DeliveryService) announce(eventType string, msg *models.Message, phone string) {
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	env := events.NewEnvelope(eventType, events.MessageEvent{
		Message:        msg,
		ConversationID: msg.ConversationID,
		CustomerPhone:  phone,
	})
	if err := s.events.Publish(ctx, eventType, env); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("type", eventType),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}
