package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type messageMocks struct {
	delivery      *MockDeliveryService
	conversations *MockConversationService
	messages      *MockMessageService
}

func setupMessageRouter() (*gin.Engine, *messageMocks) {
	mocks := &messageMocks{
		delivery:      new(MockDeliveryService),
		conversations: new(MockConversationService),
		messages:      new(MockMessageService),
	}
	handler := NewMessageHandler(mocks.delivery, mocks.conversations, mocks.messages)

	r := setupTestRouter()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextAgentID, "agent-1")
		c.Next()
	})
	r.POST("/messages/send", handler.Send)
	r.GET("/messages/conversations", handler.ListConversations)
	r.POST("/messages/conversations", handler.StartConversation)
	r.GET("/messages/conversations/:id", handler.GetConversation)
	r.PUT("/messages/conversations/:id", handler.UpdateConversation)
	r.GET("/messages/conversations/:id/messages", handler.ListMessages)
	r.GET("/messages/:id", handler.GetMessage)
	return r, mocks
}

func TestMessageHandler_Send(t *testing.T) {
	sid := "SM42"
	sent := &models.Message{ID: "msg-1", ConversationID: "conv-1", Status: models.MessageSent, CarrierDeliveryID: &sid}

	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockDeliveryService)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "sent",
			body: models.SendMessageRequest{ConversationID: "conv-1", Body: "Hello", MediaURLs: []string{"https://x/y.png"}},
			setupMock: func(m *MockDeliveryService) {
				m.On("HandleOutbound", mock.Anything, "conv-1", "agent-1", "Hello", []string{"https://x/y.png"}).Return(sent, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "carrier rejection is reported",
			body: models.SendMessageRequest{ConversationID: "conv-1", Body: "Hello"},
			setupMock: func(m *MockDeliveryService) {
				m.On("HandleOutbound", mock.Anything, "conv-1", "agent-1", "Hello", []string(nil)).
					Return(nil, apperrors.Gateway("Carrier rejected the message (code 21211)", errors.New("Post https://api.twilio.com/2010-04-01/Accounts/AC1/Messages.json")))
			},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Carrier rejected the message (code 21211)",
		},
		{
			name: "carrier timeout",
			body: models.SendMessageRequest{ConversationID: "conv-1", Body: "Hello"},
			setupMock: func(m *MockDeliveryService) {
				m.On("HandleOutbound", mock.Anything, "conv-1", "agent-1", "Hello", []string(nil)).
					Return(nil, apperrors.Gateway("carrier send timed out", context.DeadlineExceeded))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "missing conversation",
			body: models.SendMessageRequest{ConversationID: "nope", Body: "Hello"},
			setupMock: func(m *MockDeliveryService) {
				m.On("HandleOutbound", mock.Anything, "nope", "agent-1", "Hello", []string(nil)).
					Return(nil, apperrors.NotFound("Conversation not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Conversation not found",
		},
		{
			name: "internal error is hidden",
			body: models.SendMessageRequest{ConversationID: "conv-1", Body: "Hello"},
			setupMock: func(m *MockDeliveryService) {
				m.On("HandleOutbound", mock.Anything, "conv-1", "agent-1", "Hello", []string(nil)).
					Return(nil, errors.New("disk on fire"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "malformed json",
			body:           "not json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mocks := setupMessageRouter()
			if tt.setupMock != nil {
				tt.setupMock(mocks.delivery)
			}

			w := performJSON(r, http.MethodPost, "/messages/send", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			env := decodeEnvelope(t, w)
			if tt.expectedStatus == http.StatusCreated {
				assert.True(t, env.Success)
				var msg models.Message
				require.NoError(t, json.Unmarshal(env.Data, &msg))
				assert.Equal(t, "msg-1", msg.ID)
			} else {
				assert.False(t, env.Success)
				if tt.expectedError != "" {
					assert.Equal(t, tt.expectedError, env.Error)
				}
			}
			mocks.delivery.AssertExpectations(t)
		})
	}
}

func TestMessageHandler_ListConversations(t *testing.T) {
	r, mocks := setupMessageRouter()
	mocks.conversations.On("List", mock.Anything, "open").
		Return([]*models.Conversation{{ID: "a"}, {ID: "b"}}, nil)
	mocks.conversations.On("List", mock.Anything, "bogus").
		Return(nil, apperrors.Validation(`invalid status "bogus"`))

	w := performJSON(r, http.MethodGet, "/messages/conversations?status=open", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	w = performJSON(r, http.MethodGet, "/messages/conversations?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mocks.conversations.AssertExpectations(t)
}

func TestMessageHandler_StartConversation(t *testing.T) {
	r, mocks := setupMessageRouter()
	mocks.conversations.On("StartConversation", mock.Anything, "cust-1", "Billing").
		Return(&models.Conversation{ID: "conv-1", Subject: "Billing"}, nil)

	w := performJSON(r, http.MethodPost, "/messages/conversations", map[string]string{"customerId": "cust-1", "subject": "Billing"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performJSON(r, http.MethodPost, "/messages/conversations", map[string]string{"subject": "Billing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "customerID is required", decodeEnvelope(t, w).Error)

	mocks.conversations.AssertExpectations(t)
}

func TestMessageHandler_GetConversation(t *testing.T) {
	r, mocks := setupMessageRouter()
	detail := &models.ConversationDetail{
		Conversation: models.Conversation{ID: "conv-1"},
		Messages:     []*models.Message{{ID: "m1"}, {ID: "m2"}},
	}
	mocks.conversations.On("GetWithMessages", mock.Anything, "conv-1").Return(detail, nil)
	mocks.conversations.On("GetWithMessages", mock.Anything, "missing").Return(nil, apperrors.NotFound("Conversation not found"))

	w := performJSON(r, http.MethodGet, "/messages/conversations/conv-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got models.ConversationDetail
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &got))
	assert.Equal(t, "conv-1", got.ID)
	assert.Len(t, got.Messages, 2)

	w = performJSON(r, http.MethodGet, "/messages/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Conversation not found", decodeEnvelope(t, w).Error)
}

func TestMessageHandler_UpdateConversation(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockConversationService)
		expectedStatus int
	}{
		{
			name: "close",
			body: map[string]string{"status": "closed"},
			setupMock: func(m *MockConversationService) {
				m.On("SetStatus", mock.Anything, "conv-1", "closed").
					Return(&models.Conversation{ID: "conv-1", Status: models.ConversationClosed}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "invalid status",
			body: map[string]string{"status": "archived"},
			setupMock: func(m *MockConversationService) {
				m.On("SetStatus", mock.Anything, "conv-1", "archived").
					Return(nil, apperrors.Validation("invalid status"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing status",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mocks := setupMessageRouter()
			if tt.setupMock != nil {
				tt.setupMock(mocks.conversations)
			}

			w := performJSON(r, http.MethodPut, "/messages/conversations/conv-1", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mocks.conversations.AssertExpectations(t)
		})
	}
}

func TestMessageHandler_ListMessages(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockMessageService)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *MockMessageService) {
				m.On("ListRecent", mock.Anything, "conv-1", 0, 0).Return([]*models.Message{{ID: "m2"}, {ID: "m1"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:  "paged",
			query: "?limit=1&offset=1",
			setupMock: func(m *MockMessageService) {
				m.On("ListRecent", mock.Anything, "conv-1", 1, 1).Return([]*models.Message{{ID: "m1"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{name: "bad limit", query: "?limit=ten", expectedStatus: http.StatusBadRequest},
		{name: "bad offset", query: "?offset=-x", expectedStatus: http.StatusBadRequest},
		{
			name:  "negative limit",
			query: "?limit=-1",
			setupMock: func(m *MockMessageService) {
				m.On("ListRecent", mock.Anything, "conv-1", -1, 0).Return(nil, apperrors.Validation("limit and offset must not be negative"))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mocks := setupMessageRouter()
			if tt.setupMock != nil {
				tt.setupMock(mocks.messages)
			}

			w := performJSON(r, http.MethodGet, "/messages/conversations/conv-1/messages"+tt.query, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			env := decodeEnvelope(t, w)
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, env.Count)
				assert.Equal(t, tt.expectedCount, *env.Count)
			}
			mocks.messages.AssertExpectations(t)
		})
	}
}

func TestMessageHandler_GetMessage(t *testing.T) {
	r, mocks := setupMessageRouter()
	mocks.messages.On("Get", mock.Anything, "m1").Return(&models.Message{ID: "m1", Body: "Hello"}, nil)
	mocks.messages.On("Get", mock.Anything, "missing").Return(nil, apperrors.NotFound("Message not found"))

	w := performJSON(r, http.MethodGet, "/messages/m1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &got))
	assert.Equal(t, "Hello", got.Body)

	w = performJSON(r, http.MethodGet, "/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Message not found", decodeEnvelope(t, w).Error)

	w = performJSON(r, http.MethodGet, "/messages/conversations", nil)
	assert.NotEqual(t, http.StatusNotFound, w.Code, "static routes win over the message id route")
}
