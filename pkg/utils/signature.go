package utils

import (
	"errors"
	"net/url"

	twclient "github.com/twilio/twilio-go/client"
)

var (
	// ErrEmptyAuthToken indicates the carrier auth token is empty
	ErrEmptyAuthToken = errors.New("auth token cannot be empty")
	// ErrMissingSignature indicates the request carried no signature header
	ErrMissingSignature = errors.New("missing request signature")
	// ErrSignatureMismatch indicates the signature does not match the payload
	ErrSignatureMismatch = errors.New("request signature mismatch")
)

// ValidateWebhookSignature checks a carrier webhook signature over the full
// request URL and its form parameters using the carrier SDK's validator.
func ValidateWebhookSignature(authToken, fullURL string, params url.Values, signature string) error {
	if authToken == "" {
		return ErrEmptyAuthToken
	}
	if signature == "" {
		return ErrMissingSignature
	}

	validator := twclient.NewRequestValidator(authToken)
	if !validator.Validate(fullURL, flattenParams(params), signature) {
		return ErrSignatureMismatch
	}
	return nil
}

// flattenParams keeps the first value of each form field. Carrier webhooks
// never repeat a field.
func flattenParams(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
