package coupon

import (
	"github.com/google/uuid"
)

// DiscountType is how a coupon discount is expressed.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Decision is the verbatim result of validate_coupon.
// Valid decisions carry the coupon fields; invalid ones carry Error.
type Decision struct {
	Valid         bool         `json:"valid"`
	CouponID      *uuid.UUID   `json:"coupon_id,omitempty"`
	Code          string       `json:"code,omitempty"`
	DiscountType  DiscountType `json:"discount_type,omitempty"`
	DiscountValue float64      `json:"discount_value,omitempty"`
	Description   string       `json:"description,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Application is the result of apply_coupon.
type Application struct {
	Success       bool         `json:"success"`
	ApplicationID *uuid.UUID   `json:"application_id,omitempty"`
	DiscountType  DiscountType `json:"discount_type,omitempty"`
	DiscountValue float64      `json:"discount_value,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// ValidateParams identifies the code to check and who is redeeming it.
// PlanID is optional; empty skips the plan restriction.
type ValidateParams struct {
	Code   string
	UserID uuid.UUID
	PlanID string
}

// ApplyParams records a validated coupon against a new subscription.
type ApplyParams struct {
	Decision       *Decision
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
}
