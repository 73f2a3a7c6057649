package models

import "time"

// AgentStatus is an agent's availability
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// Agent is a support user who reads and answers conversations
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Phone        *string     `json:"phone,omitempty"`
	Status       AgentStatus `json:"status"`
	Role         string      `json:"role"`
	PasswordHash string      `json:"-"` // bcrypt hash, never serialized
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// LoginRequest represents the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token string `json:"token"`
	Agent *Agent `json:"agent"`
}
