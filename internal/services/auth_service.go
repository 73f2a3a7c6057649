package services

import (
	"context"
	"fmt"
	"strings"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/config"
	"sms-support-server/internal/db"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/middleware"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost parameter for bcrypt password hashing
	BcryptCost = 12

	// MinPasswordLength is the minimum length for passwords
	MinPasswordLength = 8
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password
var ErrInvalidCredentials = apperrors.Unauthorized("Invalid credentials")

// AuthService authenticates agents and issues their tokens
type AuthService struct {
	agents db.AgentRepository
	cfg    *config.Config
}

// NewAuthService creates a new AuthService instance
func NewAuthService(agents db.AgentRepository, cfg *config.Config) *AuthService {
	return &AuthService{agents: agents, cfg: cfg}
}

// Login verifies email and password and returns a signed token for the agent
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Validation("email and password are required")
	}

	agent, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Database error during authentication", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		logger.Warn("Authentication failed - agent not found",
			zap.String("email", email),
			zap.String("event_type", "invalid_credentials"),
		)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Authentication failed - invalid password",
			zap.String("agent_id", agent.ID),
			zap.String("event_type", "failed_login"),
		)
		return nil, ErrInvalidCredentials
	}

	token, err := middleware.GenerateToken(agent.ID, agent.Role, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	logger.Info("Agent logged in", zap.String("agent_id", agent.ID), zap.String("event_type", "login"))
	return &models.LoginResponse{Token: token, Agent: agent}, nil
}

// Authenticate resolves a token to the agent ID it was issued for.
// It has the shape of realtime.Authenticator.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := middleware.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return "", err
	}
	return claims.AgentID, nil
}

// EnsureAdmin creates the admin agent from the seed settings unless an agent
// with that email already exists
func (s *AuthService) EnsureAdmin(ctx context.Context) (*models.Agent, error) {
	email := strings.ToLower(strings.TrimSpace(s.cfg.Seed.AdminEmail))
	password := s.cfg.Seed.AdminPassword
	if email == "" {
		return nil, apperrors.Validation("admin email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperrors.Validation(fmt.Sprintf("admin password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	agent := &models.Agent{
		Name:         "Administrator",
		Email:        email,
		Role:         middleware.RoleAdmin,
		PasswordHash: string(hash),
	}
	err = s.agents.Create(ctx, agent)
	if apperrors.IsKind(err, apperrors.KindConflict) {
		return s.agents.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Seeded admin agent", zap.String("agent_id", agent.ID), zap.String("email", email))
	return agent, nil
}
