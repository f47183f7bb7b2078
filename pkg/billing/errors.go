package billing

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable       = errors.New("billing provider unavailable")
	ErrProviderRequestFailed     = errors.New("billing provider request failed")
	ErrSubscriptionNotFound      = errors.New("provider subscription not found")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("invalid webhook payload")
	ErrMissingCredentials        = errors.New("billing provider credentials are required")
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrInvalidEnvironment        = errors.New("invalid billing provider environment")
	ErrUnknownProvider           = errors.New("unknown billing provider")
	ErrMissingSubscriptionID     = errors.New("subscription id is required")
)

// ProviderError describes a non-success response from a provider API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.DebugID != "" {
		msg += " (debug_id " + e.DebugID + ")"
	}
	return msg
}

// Unwrap classifies the failure so callers can use errors.Is.
func (e *ProviderError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrSubscriptionNotFound
	}
	if e.StatusCode >= 500 || e.StatusCode == 429 {
		return ErrProviderUnavailable
	}
	return ErrProviderRequestFailed
}
