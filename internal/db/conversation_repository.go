package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/models"

	"github.com/google/uuid"
)

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	FindLatestByPhone(ctx context.Context, phone string) (*models.Conversation, error)
	List(ctx context.Context, status models.ConversationStatus) ([]*models.Conversation, error)
	SetStatus(ctx context.Context, id string, status models.ConversationStatus) (*models.Conversation, error)
	Touch(ctx context.Context, id string) (*models.Conversation, error)
}

type conversationRepository struct {
	database *Database
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(database *Database) ConversationRepository {
	return &conversationRepository{database: database}
}

const conversationColumns = `id, customer_id, customer_phone, customer_name, subject, status, created_at, updated_at`

// Create inserts a conversation. CustomerID must reference an existing customer when set.
func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if conversation == nil {
		return fmt.Errorf("conversation cannot be nil")
	}
	if conversation.CustomerPhone == "" {
		return apperrors.Validation("customer phone is required")
	}

	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.Status == "" {
		conversation.Status = models.ConversationOpen
	}

	now := r.database.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	query := r.database.Rebind(`
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.database.db.ExecContext(ctx, query,
		conversation.ID,
		conversation.CustomerID,
		conversation.CustomerPhone,
		conversation.CustomerName,
		conversation.Subject,
		string(conversation.Status),
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return classifyWriteError(err, "create conversation", "conversation already exists", "Customer not found")
	}

	return nil
}

// GetByID retrieves a conversation by ID; nil when absent
func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`)
	conversation, err := scanConversation(r.database.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation by ID: %w", err)
	}
	return conversation, nil
}

// FindLatestByPhone returns the most recently updated conversation for phone,
// whatever its status; nil when the phone has none.
func (r *conversationRepository) FindLatestByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone cannot be empty")
	}

	query := r.database.Rebind(`
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE customer_phone = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`)
	conversation, err := scanConversation(r.database.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by phone: %w", err)
	}
	return conversation, nil
}

// List returns conversations, most recently active first. An empty status lists all.
func (r *conversationRepository) List(ctx context.Context, status models.ConversationStatus) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := r.database.db.QueryContext(ctx, r.database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*models.Conversation{}
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// SetStatus changes the status and advances updated_at
func (r *conversationRepository) SetStatus(ctx context.Context, id string, status models.ConversationStatus) (*models.Conversation, error) {
	if !status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid conversation status %q", status))
	}
	return r.update(ctx, id, `UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`, string(status))
}

// Touch advances updated_at without changing anything else
func (r *conversationRepository) Touch(ctx context.Context, id string) (*models.Conversation, error) {
	return r.update(ctx, id, `UPDATE conversations SET updated_at = ? WHERE id = ?`)
}

func (r *conversationRepository) update(ctx context.Context, id, query string, args ...any) (*models.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}

	now := r.database.Now()
	args = append(args, now.UnixNano(), id)

	result, err := r.database.db.ExecContext(ctx, r.database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.NotFound("Conversation not found")
	}

	return r.GetByID(ctx, id)
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conversation         models.Conversation
		status               string
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&conversation.ID,
		&conversation.CustomerID,
		&conversation.CustomerPhone,
		&conversation.CustomerName,
		&conversation.Subject,
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

	conversation.Status = models.ConversationStatus(status)
	conversation.CreatedAt = toTime(createdAt)
	conversation.UpdatedAt = toTime(updatedAt)
	return &conversation, nil
}
