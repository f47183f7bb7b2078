package billing

import (
	"context"
	"net/http"
	"time"
)

// Provider names.
const (
	ProviderPayPal = "paypal"
	ProviderPaddle = "paddle"
)

// Provider is a payment provider holding the source of truth for recurring
// subscriptions.
type Provider interface {
	// Name returns the provider identifier, e.g. "paypal".
	Name() string
	// GetSubscription fetches the subscription as the provider sees it.
	GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
	// CancelSubscription stops future billing for the subscription.
	CancelSubscription(ctx context.Context, id, reason string) error
	// ActivateSubscription resumes a cancelled or suspended subscription.
	ActivateSubscription(ctx context.Context, id, reason string) error
	// ParseWebhook verifies the payload signature and normalizes the event.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error)
}

// SubscriptionStatus is the provider-neutral subscription status.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusApproved  SubscriptionStatus = "approved"
	StatusActive    SubscriptionStatus = "active"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
	StatusUnknown   SubscriptionStatus = "unknown"
)

// Activatable reports whether a subscription in this status may be recorded
// as active internally.
func (s SubscriptionStatus) Activatable() bool {
	return s == StatusActive || s == StatusApproved
}

// ProviderSubscription is a subscription as reported by the provider.
type ProviderSubscription struct {
	ID     string
	Status SubscriptionStatus
	PlanID string
	// UserID is the internal user id the subscription was created for
	// (PayPal custom_id, Paddle custom_data.user_id). Empty when unset.
	UserID          string
	NextBillingTime *time.Time
}

// EventType is a normalized webhook event type.
type EventType string

const (
	EventSubscriptionActivated EventType = "subscription_activated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventSubscriptionSuspended EventType = "subscription_suspended"
	EventPaymentFailed         EventType = "payment_failed"
	EventIgnored               EventType = "ignored"
)

// WebhookEvent is a verified, normalized provider notification.
type WebhookEvent struct {
	ID             string
	Provider       string
	Type           EventType
	ProviderEvent  string
	SubscriptionID string
	PlanID         string
	UserID         string
	Status         SubscriptionStatus
	OccurredAt     time.Time
	Raw            map[string]any
}
