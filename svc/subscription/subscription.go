package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Status is the internal subscription status. active -> cancelled is the
// only transition and cancelled is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Subscription is the internal projection of a provider subscription.
// At most one active subscription exists per user.
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	ExternalID         string     `json:"external_subscription_id"` // provider's subscription id
	ExternalPlanID     string     `json:"external_plan_id"`
	Plan               string     `json:"plan"`
	Status             Status     `json:"status"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// ProcedureResult is the jsonb returned by create_subscription_atomic and
// cancel_subscription_atomic.
type ProcedureResult struct {
	Success          bool       `json:"success"`
	Error            string     `json:"error,omitempty"`
	SubscriptionID   uuid.UUID  `json:"subscription_id"`
	Plan             string     `json:"plan,omitempty"`
	Status           Status     `json:"status,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	AlreadyActive    bool       `json:"already_active,omitempty"`
	AlreadyCancelled bool       `json:"already_cancelled,omitempty"`
}

// CreateParams are the arguments of create_subscription_atomic.
type CreateParams struct {
	UserID         uuid.UUID
	ExternalID     string
	ExternalPlanID string
	Plan           string
}

// DefaultCancellationReason is recorded when the user gives none.
const DefaultCancellationReason = "User requested cancellation"

// Compensation reasons sent to the provider.
const (
	reasonRollbackSubscription = "Database error - rollback subscription"
	reasonRollbackCancellation = "Database error - rollback cancellation"
	reasonProviderCancelled    = "Cancelled at payment provider"
)
