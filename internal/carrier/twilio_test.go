package carrier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sms-support-server/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *TwilioGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewTwilioGateway(TwilioConfig{
		BaseURL:    server.URL + "/",
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15559999",
		Timeout:    timeout,
	}, server.Client())
}

func TestTwilioGateway_Send(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550100", r.PostForm.Get("To"))
		assert.Equal(t, "+15559999", r.PostForm.Get("From"))
		assert.Equal(t, "Hello", r.PostForm.Get("Body"))
		assert.Equal(t, []string{"https://cdn.example.com/1.png", "https://cdn.example.com/2.png"}, r.PostForm["MediaUrl"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM0001","status":"queued","account_sid":"AC123"}`))
	}, time.Second)

	result, err := gateway.Send(context.Background(), "+15550100", "Hello",
		[]string{"https://cdn.example.com/1.png", "https://cdn.example.com/2.png"})
	require.NoError(t, err)
	assert.Equal(t, "SM0001", result.DeliveryID)
	assert.Equal(t, "queued", result.Status)
}

func TestTwilioGateway_SendFailures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantPublic  string
		errContains string
	}{
		{
			name: "carrier rejects",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
			},
			wantStatus:  http.StatusBadGateway,
			wantPublic:  "Carrier rejected the message: The 'To' number is not a valid phone number. (code 21211)",
			errContains: "21211",
		},
		{
			name: "bad credentials without json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantStatus:  http.StatusBadGateway,
			wantPublic:  "Invalid carrier response",
			errContains: "Invalid carrier response",
		},
		{
			name: "malformed success body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`not json`))
			},
			wantStatus:  http.StatusBadGateway,
			wantPublic:  "Invalid carrier response",
			errContains: "Invalid carrier response",
		},
		{
			name: "missing sid",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"status":"queued"}`))
			},
			wantStatus:  http.StatusBadGateway,
			wantPublic:  "Invalid carrier response",
			errContains: "missing message sid",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantPublic:  "Carrier send timed out",
			errContains: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newTestGateway(t, tt.handler, 50*time.Millisecond)

			result, err := gateway.Send(context.Background(), "+15550100", "Hello", nil)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsKind(err, apperrors.KindGateway))
			assert.Equal(t, tt.wantStatus, apperrors.HTTPStatus(err))
			assert.Equal(t, tt.wantPublic, apperrors.PublicMessage(err))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestTwilioGateway_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	gateway := NewTwilioGateway(TwilioConfig{BaseURL: baseURL, AccountSID: "ACsecret123", AuthToken: "t"}, nil)
	_, err := gateway.Send(context.Background(), "+15550100", "Hello", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGateway))
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	assert.Equal(t, "Carrier unreachable", apperrors.PublicMessage(err))
	assert.NotContains(t, apperrors.PublicMessage(err), "ACsecret123")
	assert.Equal(t, defaultSendTimeout, gateway.cfg.Timeout)
}

func TestTwilioGateway_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, time.Second)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Send(ctx, "+15550100", "Hello", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGateway))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTwilioGateway_RequiresRecipient(t *testing.T) {
	gateway := NewTwilioGateway(TwilioConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := gateway.Send(context.Background(), "", "Hello", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestSandboxGateway(t *testing.T) {
	gateway := NewSandboxGateway()

	first, err := gateway.Send(context.Background(), "+15550100", "one", nil)
	require.NoError(t, err)
	second, err := gateway.Send(context.Background(), "+15550100", "two", []string{"m"})
	require.NoError(t, err)
	assert.NotEqual(t, first.DeliveryID, second.DeliveryID)
	assert.Regexp(t, `^SM[0-9a-f]{32}$`, first.DeliveryID)

	sent := gateway.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "two", sent[1].Body)
	assert.Equal(t, []string{"m"}, sent[1].MediaURLs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gateway.Send(ctx, "+15550100", "late", nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGateway))
	assert.Len(t, gateway.Sent(), 2)
}
