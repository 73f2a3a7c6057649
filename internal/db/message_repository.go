package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/models"

	"github.com/google/uuid"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Append(ctx context.Context, msg *models.NewMessage) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	GetByCarrierDeliveryID(ctx context.Context, deliveryID string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	ListThread(ctx context.Context, conversationID string) ([]*models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error)
}

type messageRepository struct {
	database *Database
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(database *Database) MessageRepository {
	return &messageRepository{database: database}
}

const messageColumns = `id, conversation_id, sender_id, sender_type, recipient_phone, body,
	media_urls, message_type, carrier_delivery_id, status, created_at, updated_at`

// Append stores a new message. The message type is derived from the media list.
// A missing conversation yields NotFound, a reused delivery ID yields Conflict.
func (r *messageRepository) Append(ctx context.Context, in *models.NewMessage) (*models.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}
	if in.ConversationID == "" {
		return nil, apperrors.Validation("conversation ID is required")
	}
	if !in.Status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid message status %q", in.Status))
	}

	media := in.MediaURLs
	if media == nil {
		media = []string{}
	}
	encoded, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("failed to encode media urls: %w", err)
	}

	now := r.database.Now()
	msg := &models.Message{
		ID:                uuid.New().String(),
		ConversationID:    in.ConversationID,
		SenderID:          in.SenderID,
		SenderType:        in.SenderType,
		RecipientPhone:    in.RecipientPhone,
		Body:              in.Body,
		MediaURLs:         append([]string{}, media...),
		MessageType:       models.TypeForMedia(media),
		CarrierDeliveryID: in.CarrierDeliveryID,
		Status:            in.Status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := r.database.Rebind(`
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = r.database.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		string(msg.SenderType),
		msg.RecipientPhone,
		msg.Body,
		string(encoded),
		string(msg.MessageType),
		msg.CarrierDeliveryID,
		string(msg.Status),
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return nil, classifyWriteError(err, "append message", "message with this delivery ID already exists", "Conversation not found")
	}

	return msg, nil
}

// GetByID retrieves a message by ID; nil when absent
func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE id = ?`)
	msg, err := scanMessage(r.database.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}
	return msg, nil
}

// GetByCarrierDeliveryID retrieves the message the carrier knows by deliveryID; nil when absent
func (r *messageRepository) GetByCarrierDeliveryID(ctx context.Context, deliveryID string) (*models.Message, error) {
	if deliveryID == "" {
		return nil, fmt.Errorf("delivery ID cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE carrier_delivery_id = ?`)
	msg, err := scanMessage(r.database.db.QueryRowContext(ctx, query, deliveryID))
	if err != nil {
		return nil, fmt.Errorf("failed to get message by delivery ID: %w", err)
	}
	return msg, nil
}

// ListByConversation returns a page of messages, newest first
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative")
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset cannot be negative")
	}
	if limit == 0 {
		limit = 50
	}

	query := r.database.Rebind(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	return r.query(ctx, query, conversationID, limit, offset)
}

// ListThread returns every message of a conversation, oldest first
func (r *messageRepository) ListThread(ctx context.Context, conversationID string) ([]*models.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}

	query := r.database.Rebind(`
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`)
	return r.query(ctx, query, conversationID)
}

// UpdateStatus changes the delivery status, the only mutable message field
func (r *messageRepository) UpdateStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}
	if !status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid message status %q", status))
	}

	now := r.database.Now()
	query := r.database.Rebind(`UPDATE messages SET status = ?, updated_at = ? WHERE id = ?`)

	result, err := r.database.db.ExecContext(ctx, query, string(status), now.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update message status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.NotFound("Message not found")
	}

	return r.GetByID(ctx, id)
}

func (r *messageRepository) query(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.database.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg                             models.Message
		senderType, messageType, status string
		media                           string
		createdAt, updatedAt            int64
	)
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&senderType,
		&msg.RecipientPhone,
		&msg.Body,
		&media,
		&messageType,
		&msg.CarrierDeliveryID,
		&status,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msg.MediaURLs = []string{}
	if media != "" {
		if err := json.Unmarshal([]byte(media), &msg.MediaURLs); err != nil {
			return nil, fmt.Errorf("failed to decode media urls: %w", err)
		}
	}

	msg.SenderType = models.SenderType(senderType)
	msg.MessageType = models.MessageType(messageType)
	msg.Status = models.MessageStatus(status)
	msg.CreatedAt = toTime(createdAt)
	msg.UpdatedAt = toTime(updatedAt)
	return &msg, nil
}
