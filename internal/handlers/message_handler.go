package handlers

import (
	"net/http"
	"strconv"

	"sms-support-server/internal/models"
	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler serves the agent-facing conversation and message endpoints
type MessageHandler struct {
	delivery      DeliveryServiceInterface
	conversations ConversationServiceInterface
	messages      MessageServiceInterface
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	delivery DeliveryServiceInterface,
	conversations ConversationServiceInterface,
	messages MessageServiceInterface,
) *MessageHandler {
	return &MessageHandler{
		delivery:      delivery,
		conversations: conversations,
		messages:      messages,
	}
}

// Send dispatches an agent's message through the carrier (POST /api/messages/send)
func (h *MessageHandler) Send(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid send request", zap.Error(err))
		respondMessage(c, http.StatusBadRequest, bindError(err))
		return
	}

	agentID := c.GetString(middleware.ContextAgentID)
	msg, err := h.delivery.HandleOutbound(c.Request.Context(), req.ConversationID, agentID, req.Body, req.MediaURLs)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, msg)
}

// ListConversations lists conversations, optionally filtered by ?status=
func (h *MessageHandler) ListConversations(c *gin.Context) {
	conversations, err := h.conversations.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, conversations, len(conversations))
}

// StartConversation opens a conversation with an existing customer
func (h *MessageHandler) StartConversation(c *gin.Context) {
	var req models.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, bindError(err))
		return
	}

	conversation, err := h.conversations.StartConversation(c.Request.Context(), req.CustomerID, req.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, conversation)
}

// GetConversation returns a conversation with its full thread
func (h *MessageHandler) GetConversation(c *gin.Context) {
	detail, err := h.conversations.GetWithMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, detail)
}

// UpdateConversation changes a conversation's status
func (h *MessageHandler) UpdateConversation(c *gin.Context) {
	var req models.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, bindError(err))
		return
	}
	if req.Status == "" {
		respondMessage(c, http.StatusBadRequest, "Status is required")
		return
	}

	conversation, err := h.conversations.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, conversation)
}

// ListMessages returns a page of a conversation's messages, newest first.
// Supports ?limit= and ?offset=.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid limit parameter")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid offset parameter")
		return
	}

	messages, err := h.messages.ListRecent(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, messages, len(messages))
}

// GetMessage returns a single message (GET /api/messages/:id)
func (h *MessageHandler) GetMessage(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, msg)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
