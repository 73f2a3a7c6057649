package carrier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sms-support-server/internal/apperrors"
	"sms-support-server/pkg/logger"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const (
	defaultSendTimeout = 10 * time.Second
	// DefaultBaseURL is the carrier REST endpoint the SDK talks to
	DefaultBaseURL = "https://api.twilio.com"
)

// TwilioConfig holds the carrier account settings. BaseURL points the SDK at
// another host, such as a local carrier mock; empty means the real API.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// TwilioGateway sends messages through the Twilio REST API
type TwilioGateway struct {
	cfg    TwilioConfig
	client *twilio.RestClient
}

// NewTwilioGateway creates a TwilioGateway. httpClient may be nil; its
// timeout is replaced by cfg.Timeout.
func NewTwilioGateway(cfg TwilioConfig, httpClient *http.Client) *TwilioGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	hc := &http.Client{}
	if httpClient != nil {
		copied := *httpClient
		hc = &copied
	}
	hc.Timeout = cfg.Timeout
	if cfg.BaseURL != "" && cfg.BaseURL != DefaultBaseURL {
		if base, err := url.Parse(cfg.BaseURL); err == nil && base.Host != "" {
			hc.Transport = &rewriteTransport{base: base, next: hc.Transport}
		} else {
			logger.Warn("Ignoring invalid carrier base URL", zap.String("base_url", cfg.BaseURL))
		}
	}

	base := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  hc,
	}
	base.SetAccountSid(cfg.AccountSID)

	return &TwilioGateway{
		cfg:    cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{Client: base}),
	}
}

type sendOutcome struct {
	msg *openapi.ApiV2010Message
	err error
}

// Send posts the message to the carrier, bounded by the configured timeout
func (g *TwilioGateway) Send(ctx context.Context, to, body string, mediaURLs []string) (*SendResult, error) {
	if to == "" {
		return nil, apperrors.Validation("recipient phone is required")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.cfg.FromNumber)
	if body != "" {
		params.SetBody(body)
	}
	if len(mediaURLs) > 0 {
		params.SetMediaUrl(mediaURLs)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	// The SDK call takes no context; the HTTP client timeout bounds the
	// goroutine once ctx gives up on it.
	done := make(chan sendOutcome, 1)
	go func() {
		msg, err := g.client.Api.CreateMessage(params)
		done <- sendOutcome{msg: msg, err: err}
	}()

	var out sendOutcome
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, apperrors.Gateway("Carrier send cancelled", ctx.Err())
		}
		logger.Error("Carrier send timed out", zap.String("to", to), zap.Duration("timeout", g.cfg.Timeout))
		return nil, apperrors.Gateway("Carrier send timed out", ctx.Err())
	case out = <-done:
	}

	if out.err != nil {
		return nil, classifySendError(to, out.err)
	}
	if out.msg == nil || out.msg.Sid == nil || *out.msg.Sid == "" {
		logger.Error("Carrier response carried no message sid", zap.String("to", to))
		return nil, apperrors.Gateway("Invalid carrier response", errors.New("missing message sid"))
	}

	result := &SendResult{DeliveryID: *out.msg.Sid}
	if out.msg.Status != nil {
		result.Status = *out.msg.Status
	}

	logger.Info("Message sent", zap.String("to", to), zap.String("delivery_id", result.DeliveryID))
	return result, nil
}

// classifySendError maps SDK errors to Gateway errors whose message is safe to
// return to agents. The full cause is logged.
func classifySendError(to string, err error) error {
	logger.Error("Carrier send failed", zap.String("to", to), zap.Error(err))

	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		msg := fmt.Sprintf("Carrier rejected the message (code %d)", restErr.Code)
		if restErr.Message != "" {
			msg = fmt.Sprintf("Carrier rejected the message: %s (code %d)", restErr.Message, restErr.Code)
		}
		return apperrors.Gateway(msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Gateway("Carrier send timed out", fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperrors.Gateway("Carrier unreachable", err)
	}

	return apperrors.Gateway("Invalid carrier response", err)
}

// rewriteTransport sends SDK requests to base instead of the carrier host
type rewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.URL.Path = t.base.Path + req.URL.Path
	out.Host = t.base.Host

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(out)
}
