package services

import (
	"context"
	"fmt"
	"testing"

	"sms-support-server/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService_ListRecent(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	var conversationID string
	for i := 0; i < 8; i++ {
		_, conversation, err := env.delivery.HandleInbound(ctx, inboundForm("+15550100", fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		conversationID = conversation.ID
	}

	tests := []struct {
		name       string
		id         string
		limit      int
		offset     int
		wantBodies []string
		wantKind   apperrors.Kind
	}{
		{name: "first page", id: conversationID, limit: 3, wantBodies: []string{"m7", "m6", "m5"}},
		{name: "second page", id: conversationID, limit: 3, offset: 3, wantBodies: []string{"m4", "m3", "m2"}},
		{name: "past the end", id: conversationID, limit: 3, offset: 8, wantBodies: []string{}},
		{name: "default limit", id: conversationID, wantBodies: []string{"m7", "m6", "m5", "m4", "m3", "m2", "m1", "m0"}},
		{name: "oversized limit is capped", id: conversationID, limit: MaxPageSize + 1, wantBodies: []string{"m7", "m6", "m5", "m4", "m3", "m2", "m1", "m0"}},
		{name: "negative limit", id: conversationID, limit: -1, wantKind: apperrors.KindValidation},
		{name: "negative offset", id: conversationID, offset: -1, wantKind: apperrors.KindValidation},
		{name: "missing conversation", id: "missing", wantKind: apperrors.KindNotFound},
		{name: "empty id", id: "", wantKind: apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.messages.ListRecent(ctx, tt.id, tt.limit, tt.offset)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, tt.wantKind))
				return
			}
			require.NoError(t, err)
			bodies := []string{}
			for _, msg := range page {
				bodies = append(bodies, msg.Body)
			}
			assert.Equal(t, tt.wantBodies, bodies)
		})
	}
}

func TestMessageService_Get(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	msg, _, err := env.delivery.HandleInbound(ctx, inboundForm("+15550100", "hi"))
	require.NoError(t, err)

	found, err := env.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", found.Body)

	_, err = env.messages.Get(ctx, "missing")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = env.messages.Get(ctx, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}
