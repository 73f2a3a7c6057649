package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "validation", err: Validation("bad input"), expected: http.StatusBadRequest},
		{name: "not found", err: NotFound("missing"), expected: http.StatusNotFound},
		{name: "conflict", err: Conflict("duplicate", nil), expected: http.StatusConflict},
		{name: "gateway rejection", err: Gateway("carrier rejected message", errors.New("21211")), expected: http.StatusBadGateway},
		{name: "gateway timeout", err: Gateway("carrier unavailable", context.DeadlineExceeded), expected: http.StatusServiceUnavailable},
		{name: "unauthorized", err: Unauthorized("no token"), expected: http.StatusUnauthorized},
		{name: "forbidden", err: Forbidden("invalid token"), expected: http.StatusForbidden},
		{name: "wrapped validation", err: fmt.Errorf("context: %w", Validation("bad")), expected: http.StatusBadRequest},
		{name: "unclassified", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Conversation not found", PublicMessage(NotFound("Conversation not found")))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "carrier rejected message",
		PublicMessage(Gateway("carrier rejected message", errors.New("invalid number"))))

	transport := &url.Error{
		Op:  "Post",
		URL: "https://api.twilio.com/2010-04-01/Accounts/ACsecret123/Messages.json",
		Err: errors.New("dial tcp: connection refused"),
	}
	err := Gateway("Carrier unreachable", transport)
	assert.Equal(t, "Carrier unreachable", PublicMessage(err))
	assert.NotContains(t, PublicMessage(err), "ACsecret123")
	assert.Contains(t, err.Error(), "ACsecret123", "cause stays available for logging")
}

func TestIsKind(t *testing.T) {
	cause := errors.New("unique constraint")
	err := fmt.Errorf("create customer: %w", Conflict("phone already exists", cause))

	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindNotFound))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsKind(errors.New("plain"), KindConflict))
	assert.Equal(t, "conflict", KindConflict.String())
}
