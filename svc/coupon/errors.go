package coupon

import "errors"

var (
	ErrEmptyCode       = errors.New("coupon code is required")
	ErrMissingUser     = errors.New("user id is required")
	ErrDecisionFailed  = errors.New("failed to validate coupon")
	ErrApplyFailed     = errors.New("failed to apply coupon")
	ErrInvalidDecision = errors.New("coupon decision is not valid")
)
