package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sms-support-server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by AuthMiddleware
const (
	ContextAgentID = "agentID"
	ContextRole    = "role"
)

// RoleAdmin may do everything an agent can plus administrative actions
const RoleAdmin = "admin"

var (
	// ErrMissingToken indicates no bearer token was supplied
	ErrMissingToken = errors.New("Authorization header is required")
	// ErrInvalidToken indicates a malformed, forged or incomplete token
	ErrInvalidToken = errors.New("Invalid token")
	// ErrExpiredToken indicates the token is past its expiry
	ErrExpiredToken = errors.New("Token has expired")
)

// Claims represents the JWT claims issued to an agent
type Claims struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// abort writes the error envelope and stops the chain
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"statusCode": status,
	})
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}

		claims, err := ParseToken(strings.TrimPrefix(authHeader, "Bearer "), cfg.JWT.Secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(ContextAgentID, claims.AgentID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// ParseToken verifies an HS256 token signed with secret and returns its claims.
// Errors are ErrExpiredToken or ErrInvalidToken.
func ParseToken(tokenString, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.AgentID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken generates a new JWT token for an agent
func GenerateToken(agentID, role string, cfg *config.Config) (string, error) {
	if agentID == "" {
		return "", errors.New("agent ID is required")
	}
	if cfg == nil {
		return "", errors.New("config is required")
	}
	if cfg.JWT.Secret == "" {
		return "", errors.New("JWT secret is required")
	}

	now := time.Now()
	claims := &Claims{
		AgentID: agentID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWT.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// RequireRole creates middleware that admits only agents with one of roles.
// Admins are always admitted.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == RoleAdmin || hasRole(roles, role) {
			c.Next()
			return
		}
		abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}

func hasRole(roles []string, role string) bool {
	if role == "" {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
