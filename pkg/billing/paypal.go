package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// PayPalConfig holds configuration for the PayPal REST provider.
type PayPalConfig struct {
	ClientID     string        `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string        `env:"PAYPAL_CLIENT_SECRET"`
	APIBase      string        `env:"PAYPAL_API_BASE" envDefault:"https://api-m.sandbox.paypal.com"`
	WebhookID    string        `env:"PAYPAL_WEBHOOK_ID"`
	HTTPTimeout  time.Duration `env:"PAYPAL_HTTP_TIMEOUT" envDefault:"15s"`
}

const defaultPayPalHTTPTimeout = 15 * time.Second

// PayPalProvider talks to the PayPal subscriptions API.
//
// An access token is requested for every call; nothing is cached between
// requests.
type PayPalProvider struct {
	cfg        PayPalConfig
	base       string
	httpClient *http.Client
}

// NewPayPalProvider creates a PayPal provider.
func NewPayPalProvider(cfg PayPalConfig) (*PayPalProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.WebhookID == "" {
		return nil, ErrMissingWebhookSecret
	}
	base := strings.TrimRight(cfg.APIBase, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("%w: bad api base %q", ErrInvalidEnvironment, cfg.APIBase)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultPayPalHTTPTimeout
	}

	return &PayPalProvider{
		cfg:        cfg,
		base:       base,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (p *PayPalProvider) Name() string { return ProviderPayPal }

type paypalSubscription struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PlanID      string `json:"plan_id"`
	CustomID    string `json:"custom_id"`
	BillingInfo *struct {
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

// GetSubscription fetches GET /v1/billing/subscriptions/{id}.
func (p *PayPalProvider) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	if id == "" {
		return nil, ErrMissingSubscriptionID
	}

	var sub paypalSubscription
	if err := p.do(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}

	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: mapPayPalStatus(sub.Status),
		PlanID: sub.PlanID,
		UserID: sub.CustomID,
	}
	if sub.BillingInfo != nil {
		out.NextBillingTime = sub.BillingInfo.NextBillingTime
	}
	return out, nil
}

// CancelSubscription calls POST /v1/billing/subscriptions/{id}/cancel.
func (p *PayPalProvider) CancelSubscription(ctx context.Context, id, reason string) error {
	return p.subscriptionAction(ctx, id, "cancel", reason)
}

// ActivateSubscription calls POST /v1/billing/subscriptions/{id}/activate.
func (p *PayPalProvider) ActivateSubscription(ctx context.Context, id, reason string) error {
	return p.subscriptionAction(ctx, id, "activate", reason)
}

func (p *PayPalProvider) subscriptionAction(ctx context.Context, id, action, reason string) error {
	if id == "" {
		return ErrMissingSubscriptionID
	}
	body := map[string]string{"reason": reason}
	return p.do(ctx, http.MethodPost, "/v1/billing/subscriptions/"+url.PathEscape(id)+"/"+action, body, nil)
}

// PayPal transmission headers used for webhook signature verification.
const (
	headerAuthAlgo         = "PAYPAL-AUTH-ALGO"
	headerCertURL          = "PAYPAL-CERT-URL"
	headerTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	headerTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	headerTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

type paypalEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime time.Time       `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

// ParseWebhook verifies the notification with PayPal and normalizes it.
func (p *PayPalProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	var evt paypalEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if evt.ID == "" || evt.EventType == "" {
		return nil, fmt.Errorf("%w: missing id or event_type", ErrInvalidWebhookPayload)
	}

	verifyReq := map[string]any{
		"auth_algo":         header.Get(headerAuthAlgo),
		"cert_url":          header.Get(headerCertURL),
		"transmission_id":   header.Get(headerTransmissionID),
		"transmission_sig":  header.Get(headerTransmissionSig),
		"transmission_time": header.Get(headerTransmissionTime),
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}
	for _, h := range []string{headerAuthAlgo, headerCertURL, headerTransmissionID, headerTransmissionSig, headerTransmissionTime} {
		if header.Get(h) == "" {
			return nil, fmt.Errorf("%w: missing %s header", ErrWebhookVerificationFailed, h)
		}
	}

	var verifyResp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", verifyReq, &verifyResp); err != nil {
		return nil, err
	}
	if verifyResp.VerificationStatus != "SUCCESS" {
		return nil, ErrWebhookVerificationFailed
	}

	event := &WebhookEvent{
		ID:            evt.ID,
		Provider:      ProviderPayPal,
		Type:          mapPayPalEventType(evt.EventType),
		ProviderEvent: evt.EventType,
		OccurredAt:    evt.CreateTime,
	}

	var resource map[string]any
	if len(evt.Resource) > 0 {
		if err := json.Unmarshal(evt.Resource, &resource); err != nil {
			return nil, errors.Join(ErrInvalidWebhookPayload, err)
		}
	}
	event.Raw = resource

	if strings.HasPrefix(evt.EventType, "BILLING.SUBSCRIPTION.") {
		event.SubscriptionID, _ = resource["id"].(string)
		event.PlanID, _ = resource["plan_id"].(string)
		event.UserID, _ = resource["custom_id"].(string)
		if status, ok := resource["status"].(string); ok {
			event.Status = mapPayPalStatus(status)
		}
	}

	return event, nil
}

// do performs one authenticated JSON call. A fresh token is fetched through
// the client credentials grant on each call.
func (p *PayPalProvider) do(ctx context.Context, method, path string, in, out any) error {
	ccfg := clientcredentials.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		TokenURL:     p.base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	client := ccfg.Client(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient))
	client.Timeout = p.cfg.HTTPTimeout

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.base+path, body)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{Provider: ProviderPayPal, StatusCode: resp.StatusCode}
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
			DebugID string `json:"debug_id"`
		}
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(raw) > 0 {
			if json.Unmarshal(raw, &apiErr) == nil {
				perr.Name, perr.Message, perr.DebugID = apiErr.Name, apiErr.Message, apiErr.DebugID
			}
		}
		return perr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrProviderRequestFailed, fmt.Errorf("paypal: decode response: %w", err))
	}
	return nil
}

func mapPayPalStatus(s string) SubscriptionStatus {
	switch strings.ToUpper(s) {
	case "APPROVAL_PENDING":
		return StatusPending
	case "APPROVED":
		return StatusApproved
	case "ACTIVE":
		return StatusActive
	case "SUSPENDED":
		return StatusSuspended
	case "CANCELLED":
		return StatusCancelled
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnknown
	}
}

func mapPayPalEventType(t string) EventType {
	switch t {
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		return EventSubscriptionActivated
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return EventSubscriptionCancelled
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		return EventSubscriptionSuspended
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		return EventPaymentFailed
	default:
		return EventIgnored
	}
}
