package coupon

import (
	"context"

	"github.com/google/uuid"
)

// Store runs the coupon decision functions in the database.
type Store interface {
	ValidateCoupon(ctx context.Context, code string, userID uuid.UUID, planID string) (*Decision, error)
	ApplyCoupon(ctx context.Context, couponID, userID, subscriptionID uuid.UUID, discountValue float64) (*Application, error)
}
