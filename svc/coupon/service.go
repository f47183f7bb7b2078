package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/coachlatam/coachlatam/pkg/logger"
)

// Service validates and applies discount coupons.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates a coupon service. A nil logger discards output.
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store: store,
		log:   log.With(logger.Component("coupon")),
	}
}

// NormalizeCode trims surrounding whitespace and upper-cases the code.
// A Caser is stateful, so one is built per call.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// Validate asks the database whether the user may redeem the code.
// An invalid coupon is not an error: the returned Decision carries the
// reason. Errors are returned only for bad input or a failed lookup.
func (s *Service) Validate(ctx context.Context, params ValidateParams) (*Decision, error) {
	if params.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}
	code := NormalizeCode(params.Code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	d, err := s.store.ValidateCoupon(ctx, code, params.UserID, strings.TrimSpace(params.PlanID))
	if err != nil {
		s.log.ErrorContext(ctx, "coupon validation failed",
			logger.UserID(params.UserID),
			logger.CouponCode(code),
			logger.Error(err),
		)
		return nil, errors.Join(ErrDecisionFailed, err)
	}

	s.log.DebugContext(ctx, "coupon validated",
		logger.UserID(params.UserID),
		logger.CouponCode(code),
		slog.Bool("valid", d.Valid),
		slog.String("reason", d.Error),
	)
	return d, nil
}

// Apply records the coupon application for a freshly activated
// subscription. The discount is the coupon's own type and value.
func (s *Service) Apply(ctx context.Context, params ApplyParams) (*Application, error) {
	d := params.Decision
	if d == nil || !d.Valid || d.CouponID == nil {
		return nil, ErrInvalidDecision
	}

	app, err := s.store.ApplyCoupon(ctx, *d.CouponID, params.UserID, params.SubscriptionID, d.DiscountValue)
	if err != nil {
		return nil, errors.Join(ErrApplyFailed, err)
	}
	if !app.Success {
		return app, fmt.Errorf("%w: %s", ErrApplyFailed, app.Error)
	}
	return app, nil
}
