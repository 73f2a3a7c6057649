package carrier

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sms-support-server/internal/apperrors"
	"sms-support-server/internal/models"
	"sms-support-server/pkg/utils"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// InboundMessage is a carrier webhook translated into pipeline input.
// Only the first media attachment is kept.
type InboundMessage struct {
	FromPhone  string
	ToPhone    string
	Body       string
	MediaURLs  []string
	DeliveryID string
}

type inboundPayload struct {
	From     string `validate:"required,max=32"`
	To       string `validate:"required,max=32"`
	Body     string `validate:"max=1600"`
	NumMedia int    `validate:"gte=0,lte=10"`
	MediaURL string `validate:"omitempty,url"`
}

// StatusCallback is a delivery status update for an outbound message
type StatusCallback struct {
	DeliveryID    string
	CarrierStatus string
	Status        models.MessageStatus
	ErrorCode     string
}

type statusPayload struct {
	MessageSid    string `validate:"required,max=64"`
	MessageStatus string `validate:"required"`
}

// ParseInbound reads the form fields of an inbound message webhook.
// Malformed payloads yield a Validation error. A message with neither body
// nor media is well formed and kept as an empty SMS.
func ParseInbound(values url.Values) (*InboundMessage, error) {
	payload := inboundPayload{
		From:     strings.TrimSpace(values.Get("From")),
		To:       strings.TrimSpace(values.Get("To")),
		Body:     values.Get("Body"),
		MediaURL: firstNonEmpty(values.Get("Media0Url"), values.Get("Media0UrL")),
	}

	if raw := strings.TrimSpace(values.Get("NumMedia")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperrors.Validation("NumMedia must be an integer")
		}
		payload.NumMedia = n
	}

	if err := validate.Struct(payload); err != nil {
		return nil, apperrors.Validation(describe(err))
	}
	if payload.NumMedia > 0 && payload.MediaURL == "" {
		return nil, apperrors.Validation("Media0Url is required when NumMedia is positive")
	}

	from, err := utils.NormalizePhone(payload.From)
	if err != nil {
		return nil, apperrors.Validation("invalid From phone number")
	}
	to, err := utils.NormalizePhone(payload.To)
	if err != nil {
		return nil, apperrors.Validation("invalid To phone number")
	}

	media := []string{}
	if payload.NumMedia > 0 {
		media = append(media, payload.MediaURL)
	}

	return &InboundMessage{
		FromPhone:  from,
		ToPhone:    to,
		Body:       payload.Body,
		MediaURLs:  media,
		DeliveryID: values.Get("MessageSid"),
	}, nil
}

// ParseStatusCallback reads a delivery status webhook
func ParseStatusCallback(values url.Values) (*StatusCallback, error) {
	payload := statusPayload{
		MessageSid:    strings.TrimSpace(values.Get("MessageSid")),
		MessageStatus: strings.ToLower(strings.TrimSpace(values.Get("MessageStatus"))),
	}
	if payload.MessageSid == "" {
		payload.MessageSid = strings.TrimSpace(values.Get("SmsSid"))
	}
	if payload.MessageStatus == "" {
		payload.MessageStatus = strings.ToLower(strings.TrimSpace(values.Get("SmsStatus")))
	}

	if err := validate.Struct(payload); err != nil {
		return nil, apperrors.Validation(describe(err))
	}

	status, ok := MapStatus(payload.MessageStatus)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unknown message status %q", payload.MessageStatus))
	}

	return &StatusCallback{
		DeliveryID:    payload.MessageSid,
		CarrierStatus: payload.MessageStatus,
		Status:        status,
		ErrorCode:     values.Get("ErrorCode"),
	}, nil
}

// MapStatus folds a carrier message status into the stored status values
func MapStatus(carrierStatus string) (models.MessageStatus, bool) {
	switch carrierStatus {
	case "accepted", "scheduled", "queued", "sending", "sent":
		return models.MessageSent, true
	case "delivered", "read":
		return models.MessageDelivered, true
	case "failed", "undelivered", "canceled":
		return models.MessageFailed, true
	case "receiving", "received":
		return models.MessageReceived, true
	}
	return "", false
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
