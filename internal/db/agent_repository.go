package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sms-support-server/internal/models"

	"github.com/google/uuid"
)

// AgentRepository defines the interface for agent data access
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	GetByEmail(ctx context.Context, email string) (*models.Agent, error)
}

type agentRepository struct {
	database *Database
}

// NewAgentRepository creates a new AgentRepository
func NewAgentRepository(database *Database) AgentRepository {
	return &agentRepository{database: database}
}

const agentColumns = `id, name, email, phone, status, role, password_hash, created_at, updated_at`

// Create creates a new agent in the database
func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Status == "" {
		agent.Status = models.AgentOnline
	}
	if agent.Role == "" {
		agent.Role = "agent"
	}

	now := r.database.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	query := r.database.Rebind(`
		INSERT INTO agents (` + agentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.database.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Email,
		agent.Phone,
		string(agent.Status),
		agent.Role,
		agent.PasswordHash,
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return classifyWriteError(err, "create agent", "agent with this email already exists", "")
	}

	return nil
}

// GetByID retrieves an agent by ID; nil when absent
func (r *agentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("agent ID cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + agentColumns + ` FROM agents WHERE id = ?`)
	agent, err := scanAgent(r.database.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get agent by ID: %w", err)
	}
	return agent, nil
}

// GetByEmail retrieves an agent by email; nil when absent
func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	if email == "" {
		return nil, fmt.Errorf("agent email cannot be empty")
	}

	query := r.database.Rebind(`SELECT ` + agentColumns + ` FROM agents WHERE email = ?`)
	agent, err := scanAgent(r.database.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get agent by email: %w", err)
	}
	return agent, nil
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var (
		agent                models.Agent
		status               string
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Phone,
		&status,
		&agent.Role,
		&agent.PasswordHash,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	agent.Status = models.AgentStatus(status)
	agent.CreatedAt = toTime(createdAt)
	agent.UpdatedAt = toTime(updatedAt)
	return &agent, nil
}
