// Package carrier talks to the SMS carrier: outbound sends and parsing of the
// webhooks the carrier posts back.
package carrier

import (
	"context"
	"strings"
	"sync"

	"sms-support-server/internal/apperrors"
	"sms-support-server/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendResult is what the carrier reports for an accepted outbound message
type SendResult struct {
	DeliveryID string
	Status     string
}

// Gateway dispatches outbound messages. Send fails with a Gateway error when
// the carrier cannot be reached or rejects the message.
type Gateway interface {
	Send(ctx context.Context, to, body string, mediaURLs []string) (*SendResult, error)
}

// SentMessage is a message accepted by the SandboxGateway
type SentMessage struct {
	To         string
	Body       string
	MediaURLs  []string
	DeliveryID string
}

// SandboxGateway accepts every message without contacting a carrier.
// Used when no carrier credentials are configured.
type SandboxGateway struct {
	mu   sync.Mutex
	sent []SentMessage
}

// NewSandboxGateway creates an empty SandboxGateway
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{}
}

// Send records the message and returns a generated delivery ID
func (g *SandboxGateway) Send(ctx context.Context, to, body string, mediaURLs []string) (*SendResult, error) {
	if to == "" {
		return nil, apperrors.Validation("recipient phone is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Gateway("carrier send aborted", err)
	}

	deliveryID := "SM" + strings.ReplaceAll(uuid.New().String(), "-", "")

	g.mu.Lock()
	g.sent = append(g.sent, SentMessage{
		To:         to,
		Body:       body,
		MediaURLs:  append([]string(nil), mediaURLs...),
		DeliveryID: deliveryID,
	})
	g.mu.Unlock()

	logger.Info("Sandbox carrier accepted message",
		zap.String("to", to),
		zap.String("delivery_id", deliveryID),
		zap.Int("media", len(mediaURLs)),
	)

	return &SendResult{DeliveryID: deliveryID, Status: "queued"}, nil
}

// Sent returns a copy of every message accepted so far
func (g *SandboxGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}
