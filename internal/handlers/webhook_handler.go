package handlers

import (
	"net/http"

	"sms-support-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler receives carrier callbacks. Payloads are form encoded.
type WebhookHandler struct {
	delivery DeliveryServiceInterface
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(delivery DeliveryServiceInterface) *WebhookHandler {
	return &WebhookHandler{delivery: delivery}
}

// Incoming handles an inbound message (POST /api/webhooks/carrier/incoming).
// Malformed payloads get a 400 so the carrier retries or alerts.
func (h *WebhookHandler) Incoming(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid form body")
		return
	}

	msg, conversation, err := h.delivery.HandleInbound(c.Request.Context(), c.Request.PostForm)
	if err != nil {
		logger.Warn("Inbound webhook failed", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"message":      msg,
		"conversation": conversation,
	})
}

// Status handles a delivery status callback (POST /api/webhooks/carrier/status)
func (h *WebhookHandler) Status(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid form body")
		return
	}

	msg, err := h.delivery.HandleStatusCallback(c.Request.Context(), c.Request.PostForm)
	if err != nil {
		logger.Warn("Status callback failed", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, msg)
}
