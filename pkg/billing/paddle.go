package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"sandbox"`
}

// paddleSubscriptions is the part of the Paddle SDK the provider uses.
type paddleSubscriptions interface {
	GetSubscription(ctx context.Context, req *paddle.GetSubscriptionRequest) (*paddle.Subscription, error)
	CancelSubscription(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error)
	UpdateSubscription(ctx context.Context, req *paddle.UpdateSubscriptionRequest) (*paddle.Subscription, error)
}

// PaddleProvider implements Provider on top of the Paddle Billing SDK.
type PaddleProvider struct {
	subs     paddleSubscriptions
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle provider for the configured environment.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return newPaddleProvider(client.SubscriptionsClient, cfg.WebhookSecret), nil
}

func newPaddleProvider(subs paddleSubscriptions, webhookSecret string) *PaddleProvider {
	return &PaddleProvider{
		subs:     subs,
		verifier: paddle.NewWebhookVerifier(webhookSecret),
	}
}

func (p *PaddleProvider) Name() string { return ProviderPaddle }

// GetSubscription fetches the subscription from Paddle.
func (p *PaddleProvider) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	if id == "" {
		return nil, ErrMissingSubscriptionID
	}

	ctx, cancel := context.WithTimeout(ctx, paddleCallTimeout)
	defer cancel()

	sub, err := p.subs.GetSubscription(ctx, &paddle.GetSubscriptionRequest{SubscriptionID: id})
	if err != nil {
		return nil, paddleError(err)
	}

	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: mapPaddleStatus(string(sub.Status)),
	}
	if len(sub.Items) > 0 {
		out.PlanID = sub.Items[0].Price.ID
	}
	if userID, ok := sub.CustomData["user_id"].(string); ok {
		out.UserID = userID
	}
	return out, nil
}

// CancelSubscription schedules cancellation at the end of the current
// billing period.
func (p *PaddleProvider) CancelSubscription(ctx context.Context, id, _ string) error {
	if id == "" {
		return ErrMissingSubscriptionID
	}
	ctx, cancel := context.WithTimeout(ctx, paddleCallTimeout)
	defer cancel()

	_, err := p.subs.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: id,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return paddleError(err)
	}
	return nil
}

// ActivateSubscription removes a scheduled cancellation. Paddle has no
// reason field for this change.
func (p *PaddleProvider) ActivateSubscription(ctx context.Context, id, _ string) error {
	if id == "" {
		return ErrMissingSubscriptionID
	}
	ctx, cancel := context.WithTimeout(ctx, paddleCallTimeout)
	defer cancel()

	_, err := p.subs.UpdateSubscription(ctx, &paddle.UpdateSubscriptionRequest{
		SubscriptionID:  id,
		ScheduledChange: paddle.NewPatchField[*paddle.SubscriptionScheduledChange](nil),
	})
	if err != nil {
		return paddleError(err)
	}
	return nil
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", header.Get("Paddle-Signature"))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var raw struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt time.Time      `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if raw.EventID == "" || raw.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_id or event_type", ErrInvalidWebhookPayload)
	}

	event := &WebhookEvent{
		ID:            raw.EventID,
		Provider:      ProviderPaddle,
		Type:          mapPaddleEventType(raw.EventType),
		ProviderEvent: raw.EventType,
		OccurredAt:    raw.OccurredAt,
		Raw:           raw.Data,
	}

	switch {
	case strings.HasPrefix(raw.EventType, "subscription."):
		event.SubscriptionID, _ = raw.Data["id"].(string)
	case strings.HasPrefix(raw.EventType, "transaction."):
		event.SubscriptionID, _ = raw.Data["subscription_id"].(string)
	}
	if status, ok := raw.Data["status"].(string); ok {
		event.Status = mapPaddleStatus(status)
	}
	if customData, ok := raw.Data["custom_data"].(map[string]any); ok {
		event.UserID, _ = customData["user_id"].(string)
	}
	if items, ok := raw.Data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				event.PlanID, _ = price["id"].(string)
			}
		}
	}

	return event, nil
}

// paddleError classifies SDK failures. The SDK reports API errors as
// values with their own codes, so the cause is kept joined for callers that
// need it.
func paddleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrProviderUnavailable, err)
	}
	return errors.Join(ErrProviderRequestFailed, err)
}

func mapPaddleStatus(s string) SubscriptionStatus {
	switch s {
	case "active", "trialing":
		return StatusActive
	case "past_due", "paused":
		return StatusSuspended
	case "canceled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

func mapPaddleEventType(t string) EventType {
	switch t {
	case "subscription.activated", "subscription.created", "subscription.resumed":
		return EventSubscriptionActivated
	case "subscription.canceled":
		return EventSubscriptionCancelled
	case "subscription.paused":
		return EventSubscriptionSuspended
	case "transaction.payment_failed", "subscription.past_due":
		return EventPaymentFailed
	default:
		return EventIgnored
	}
}
