package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/pkg/statemachine"
)

// SagaKind is the billing operation a saga tracks.
type SagaKind string

const (
	SagaActivation   SagaKind = "activation"
	SagaCancellation SagaKind = "cancellation"
)

// SagaState is the persisted state of a saga.
type SagaState string

const (
	SagaStarted      SagaState = "started"
	SagaCompleted    SagaState = "completed"
	SagaAborted      SagaState = "aborted"
	SagaCompensating SagaState = "compensating"
	SagaCompensated  SagaState = "compensated"
	SagaCritical     SagaState = "critical"
	SagaResolved     SagaState = "resolved"
)

// SagaEvent drives saga transitions.
type SagaEvent string

const (
	EventCommitted          SagaEvent = "committed"
	EventProviderFailed     SagaEvent = "provider_failed"
	EventRejected           SagaEvent = "rejected"
	EventCommitFailed       SagaEvent = "commit_failed"
	EventCompensated        SagaEvent = "compensated"
	EventCompensationFailed SagaEvent = "compensation_failed"
	EventResolved           SagaEvent = "resolved"
)

// Compensation is the outcome of the compensating provider call.
type Compensation string

const (
	CompensationNone      Compensation = "none"
	CompensationSucceeded Compensation = "succeeded"
	CompensationFailed    Compensation = "failed"
)

// Saga is one activation or cancellation run. A saga in SagaCritical means
// the provider and the database disagree and an operator must reconcile.
type Saga struct {
	ID                     uuid.UUID    `json:"id"`
	Kind                   SagaKind     `json:"kind"`
	Provider               string       `json:"provider"`
	UserID                 uuid.UUID    `json:"user_id"`
	ExternalSubscriptionID string       `json:"external_subscription_id"`
	SubscriptionID         *uuid.UUID   `json:"subscription_id,omitempty"`
	State                  SagaState    `json:"state"`
	Compensation           Compensation `json:"compensation"`
	Reason                 string       `json:"reason,omitempty"`
	LastError              string       `json:"last_error,omitempty"`
	CouponError            string       `json:"coupon_error,omitempty"`
	ResolutionNote         string       `json:"resolution_note,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
	ResolvedAt             *time.Time   `json:"resolved_at,omitempty"`
}

// NewSaga starts a saga.
func NewSaga(kind SagaKind, provider string, userID uuid.UUID, externalID, reason string) *Saga {
	now := time.Now().UTC()
	return &Saga{
		ID:                     uuid.New(),
		Kind:                   kind,
		Provider:               provider,
		UserID:                 userID,
		ExternalSubscriptionID: externalID,
		State:                  SagaStarted,
		Compensation:           CompensationNone,
		Reason:                 reason,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func setCompensation(c Compensation) statemachine.Action[SagaState, SagaEvent, *Saga] {
	return func(_ context.Context, _, _ SagaState, _ SagaEvent, s *Saga) error {
		s.Compensation = c
		return nil
	}
}

var sagaDefinition = statemachine.MustDefine(
	statemachine.WithTransition[SagaState, SagaEvent, *Saga](SagaStarted, SagaCompleted, EventCommitted),
	statemachine.WithTransition[SagaState, SagaEvent, *Saga](SagaStarted, SagaAborted, EventProviderFailed),
	statemachine.WithTransition[SagaState, SagaEvent, *Saga](SagaStarted, SagaAborted, EventRejected),
	statemachine.WithTransition[SagaState, SagaEvent, *Saga](SagaStarted, SagaCompensating, EventCommitFailed),
	statemachine.WithTransition(SagaCompensating, SagaCompensated, EventCompensated,
		statemachine.WithAction(setCompensation(CompensationSucceeded))),
	statemachine.WithTransition(SagaCompensating, SagaCritical, EventCompensationFailed,
		statemachine.WithAction(setCompensation(CompensationFailed))),
	statemachine.WithTransition(SagaCritical, SagaResolved, EventResolved,
		statemachine.WithAction(markResolved)),
)

var markResolved statemachine.Action[SagaState, SagaEvent, *Saga] = func(_ context.Context, _, _ SagaState, _ SagaEvent, s *Saga) error {
	now := time.Now().UTC()
	s.ResolvedAt = &now
	return nil
}

// Fire applies event to the saga, updating its state in place.
func (s *Saga) Fire(ctx context.Context, event SagaEvent) error {
	m := sagaDefinition.New(s.State)
	if err := m.Fire(ctx, event, s); err != nil {
		return err
	}
	s.State = m.Current()
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the saga can no longer change state.
func (s *Saga) IsTerminal() bool {
	return sagaDefinition.IsTerminal(s.State)
}
