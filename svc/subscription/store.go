package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store reads subscriptions and runs the atomic subscription procedures.
type Store interface {
	// ActiveSubscription returns ErrSubscriptionNotFound when the user has
	// no active subscription.
	ActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	SubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error)
	CreateSubscriptionAtomic(ctx context.Context, params CreateParams) (*ProcedureResult, error)
	CancelSubscriptionAtomic(ctx context.Context, subscriptionID, userID uuid.UUID, reason string) (*ProcedureResult, error)

	WebhookProcessed(ctx context.Context, eventID string) (bool, error)
	MarkWebhookProcessed(ctx context.Context, provider, eventID, eventType string) error
}

// SagaStore persists the billing saga log.
type SagaStore interface {
	CreateSaga(ctx context.Context, s *Saga) error
	UpdateSaga(ctx context.Context, s *Saga) error
	GetSaga(ctx context.Context, id uuid.UUID) (*Saga, error)
	// ListSagas returns the newest sagas first. An empty state lists all.
	ListSagas(ctx context.Context, state SagaState, limit int) ([]Saga, error)
}
