package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/pkg/billing"
	"github.com/coachlatam/coachlatam/pkg/logger"
)

// WebhookResult describes what was done with a provider notification.
type WebhookResult struct {
	EventID   string            `json:"event_id"`
	Type      billing.EventType `json:"type"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Action    string            `json:"action"`
}

// Webhook actions.
const (
	actionActivated = "activated"
	actionCancelled = "cancelled"
	actionNoop      = "noop"
	actionIgnored   = "ignored"
)

// HandleWebhook verifies and applies a provider notification. Duplicate
// events are acknowledged without processing. Business rejections (unknown
// user, unknown plan, subscription cancelled) are acknowledged so the
// provider stops retrying. Storage failures and a user operation holding the
// billing lock are returned so the provider retries.
func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (*WebhookResult, error) {
	if provider != s.provider.Name() {
		return nil, newError(ErrNotFound, "Unknown webhook provider", provider, ErrUnknownWebhookProvider)
	}

	evt, err := s.provider.ParseWebhook(ctx, payload, header)
	if err != nil {
		if errors.Is(err, billing.ErrWebhookVerificationFailed) || errors.Is(err, billing.ErrInvalidWebhookPayload) {
			s.log.WarnContext(ctx, "rejected webhook", logger.Provider(provider), logger.Error(err))
			return nil, newError(ErrValidation, "Invalid webhook", "", err)
		}
		s.log.ErrorContext(ctx, "failed to verify webhook", logger.Provider(provider), logger.Error(err))
		return nil, newError(ErrExternal, "Failed to verify webhook", "", err)
	}

	log := s.log.With(
		logger.Provider(provider),
		slog.String("event_id", evt.ID),
		logger.EventType(evt.ProviderEvent),
		logger.ExternalSubscriptionID(evt.SubscriptionID),
	)
	result := &WebhookResult{EventID: evt.ID, Type: evt.Type}

	done, err := s.store.WebhookProcessed(ctx, evt.ID)
	if err != nil {
		return nil, newError(ErrExternal, "Failed to process webhook", "", err)
	}
	if done {
		log.InfoContext(ctx, "duplicate webhook acknowledged")
		result.Duplicate = true
		result.Action = actionNoop
		return result, nil
	}

	switch evt.Type {
	case billing.EventSubscriptionActivated:
		result.Action, err = s.applyActivation(ctx, log, evt)
	case billing.EventSubscriptionCancelled:
		result.Action, err = s.applyCancellation(ctx, log, evt)
	case billing.EventSubscriptionSuspended, billing.EventPaymentFailed:
		log.WarnContext(ctx, "subscription needs attention at provider", slog.String("status", string(evt.Status)))
		result.Action = actionNoop
	default:
		result.Action = actionIgnored
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to apply webhook", logger.Error(err))
		return nil, newError(ErrExternal, "Failed to process webhook", "", err)
	}

	if err := s.store.MarkWebhookProcessed(ctx, provider, evt.ID, evt.ProviderEvent); err != nil {
		// the event is applied idempotently, a redelivery is harmless
		log.WarnContext(ctx, "failed to record processed webhook", logger.Error(err))
	}

	log.InfoContext(ctx, "webhook processed", slog.String("action", result.Action))
	return result, nil
}

func (s *Service) applyActivation(ctx context.Context, log *slog.Logger, evt *billing.WebhookEvent) (string, error) {
	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		log.WarnContext(ctx, "activation webhook without a valid user id", slog.String("custom_id", evt.UserID))
		return actionIgnored, nil
	}
	plan, ok := s.catalog.Lookup(evt.PlanID)
	if !ok {
		log.WarnContext(ctx, "activation webhook for unknown plan", slog.String("plan_id", evt.PlanID))
		return actionIgnored, nil
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	res, err := s.store.CreateSubscriptionAtomic(ctx, CreateParams{
		UserID:         userID,
		ExternalID:     evt.SubscriptionID,
		ExternalPlanID: evt.PlanID,
		Plan:           plan.Name,
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		log.WarnContext(ctx, "activation webhook rejected by database", logger.UserID(userID), slog.String("reason", res.Error))
		return actionIgnored, nil
	}
	if res.AlreadyActive {
		return actionNoop, nil
	}
	return actionActivated, nil
}

func (s *Service) applyCancellation(ctx context.Context, log *slog.Logger, evt *billing.WebhookEvent) (string, error) {
	sub, err := s.store.SubscriptionByExternalID(ctx, evt.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.WarnContext(ctx, "cancellation webhook for unknown subscription")
		return actionIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if sub.IsCancelled() {
		return actionNoop, nil
	}

	unlock, err := s.lock(ctx, sub.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	// A cancellation may have been rolled back by reactivation since the
	// event was sent, so the provider's current status decides.
	remote, err := s.provider.GetSubscription(ctx, evt.SubscriptionID)
	if err != nil {
		return "", err
	}
	if remote.Status != billing.StatusCancelled {
		log.InfoContext(ctx, "stale cancellation webhook, subscription is live at provider",
			slog.String("remote_status", string(remote.Status)))
		return actionNoop, nil
	}

	res, err := s.store.CancelSubscriptionAtomic(ctx, sub.ID, sub.UserID, reasonProviderCancelled)
	if err != nil {
		return "", err
	}
	if !res.Success {
		log.WarnContext(ctx, "cancellation webhook rejected by database", slog.String("reason", res.Error))
		return actionIgnored, nil
	}
	return actionCancelled, nil
}
