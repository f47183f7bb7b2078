package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/pkg/billing"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/svc/coupon"
)

// CouponService validates and applies coupons during activation.
type CouponService interface {
	Validate(ctx context.Context, params coupon.ValidateParams) (*coupon.Decision, error)
	Apply(ctx context.Context, params coupon.ApplyParams) (*coupon.Application, error)
}

// Service runs subscription activation and cancellation against the billing
// provider and the database, compensating at the provider when the database
// step fails.
type Service struct {
	provider billing.Provider
	store    Store
	sagas    SagaStore
	catalog  *Catalog
	coupons  CouponService
	locker   Locker
	notifier Notifier
	log      *slog.Logger

	compensationTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCoupons enables coupon codes on activation.
func WithCoupons(c CouponService) Option {
	return func(s *Service) { s.coupons = c }
}

// WithLocker serializes billing operations per user.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithNotifier sets the receiver of critical inconsistency alerts.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCompensationTimeout bounds the compensating provider call. The call
// runs detached from the request context so a client disconnect cannot
// interrupt it.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

// NewService returns a Service without coupons and with an in-process no-op
// locker unless options say otherwise.
func NewService(provider billing.Provider, store Store, sagas SagaStore, catalog *Catalog, opts ...Option) *Service {
	s := &Service{
		provider:            provider,
		store:               store,
		sagas:               sagas,
		catalog:             catalog,
		locker:              noopLocker{},
		log:                 slog.New(slog.DiscardHandler),
		compensationTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.log)
	}
	s.log = s.log.With(logger.Component("subscription"))
	return s
}

// ActivateParams are the client-reported ids of an approved provider
// subscription.
type ActivateParams struct {
	UserID                 uuid.UUID
	ExternalSubscriptionID string
	ExternalPlanID         string
	CouponCode             string
}

type ActivationResult struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Plan           string    `json:"plan"`
	Status         Status    `json:"status"`
	CouponApplied  bool      `json:"coupon_applied"`
	AlreadyActive  bool      `json:"already_active,omitempty"`
	SagaID         uuid.UUID `json:"saga_id"`
}

// Activate records an approved provider subscription as the user's active
// subscription. If the database write fails the provider subscription is
// cancelled once, so the user is not billed for a plan they do not have.
func (s *Service) Activate(ctx context.Context, p ActivateParams) (*ActivationResult, error) {
	if p.UserID == uuid.Nil {
		return nil, newError(ErrUnauthenticated, "Unauthorized", "", nil)
	}
	extID := strings.TrimSpace(p.ExternalSubscriptionID)
	planID := strings.TrimSpace(p.ExternalPlanID)
	if extID == "" {
		return nil, newError(ErrValidation, "subscriptionId is required", "", nil)
	}
	if planID == "" {
		return nil, newError(ErrValidation, "planId is required", "", nil)
	}
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, newError(ErrValidation, "Unknown plan", planID, ErrPlanNotFound)
	}

	log := s.log.With(
		logger.UserID(p.UserID),
		logger.ExternalSubscriptionID(extID),
		logger.Provider(s.provider.Name()),
	)

	unlock, err := s.lock(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	saga := NewSaga(SagaActivation, s.provider.Name(), p.UserID, extID, "")
	log = log.With(logger.SagaID(saga.ID))
	s.createSaga(ctx, log, saga)

	remote, err := s.provider.GetSubscription(ctx, extID)
	if err != nil {
		s.step(ctx, log, saga, EventProviderFailed, err)
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil, newError(ErrValidation, "Subscription not found at payment provider", extID, err)
		}
		log.ErrorContext(ctx, "failed to verify subscription with provider", logger.Error(err))
		return nil, newError(ErrExternal, "Failed to verify subscription with payment provider", err.Error(), err)
	}
	if rejection := verifyRemote(remote, p.UserID, planID); rejection != "" {
		s.step(ctx, log, saga, EventRejected, errors.New(rejection))
		log.WarnContext(ctx, "activation rejected", slog.String("reason", rejection),
			slog.String("remote_status", string(remote.Status)),
			slog.String("remote_plan", remote.PlanID),
		)
		return nil, newError(ErrValidation, rejection, extID, nil)
	}

	var decision *coupon.Decision
	if code := strings.TrimSpace(p.CouponCode); code != "" {
		if s.coupons == nil {
			s.step(ctx, log, saga, EventRejected, errors.New("coupons disabled"))
			return nil, newError(ErrValidation, "Coupons are not available", "", nil)
		}
		decision, err = s.coupons.Validate(ctx, coupon.ValidateParams{Code: code, UserID: p.UserID, PlanID: planID})
		if err != nil {
			s.step(ctx, log, saga, EventRejected, err)
			log.ErrorContext(ctx, "failed to validate coupon", logger.CouponCode(code), logger.Error(err))
			return nil, newError(ErrExternal, "Failed to validate coupon", "", err)
		}
		if !decision.Valid {
			s.step(ctx, log, saga, EventRejected, errors.New(decision.Error))
			return nil, newError(ErrValidation, decision.Error, code, nil)
		}
	}

	res, err := s.store.CreateSubscriptionAtomic(ctx, CreateParams{
		UserID:         p.UserID,
		ExternalID:     extID,
		ExternalPlanID: planID,
		Plan:           plan.Name,
	})
	if err == nil && !res.Success {
		err = fmt.Errorf("create_subscription_atomic: %s", res.Error)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to record subscription, cancelling at provider", logger.Error(err))
		return nil, s.compensate(ctx, log, saga, err, compensation{
			call: func(ctx context.Context) error {
				return s.provider.CancelSubscription(ctx, extID, reasonRollbackSubscription)
			},
			message:       "Failed to activate subscription",
			detailsOK:     fmt.Sprintf("subscription %s was cancelled at the payment provider", extID),
			detailsFailed: fmt.Sprintf("subscription %s could not be cancelled at the payment provider", extID),
		})
	}

	saga.SubscriptionID = &res.SubscriptionID
	result := &ActivationResult{
		SubscriptionID: res.SubscriptionID,
		Plan:           res.Plan,
		Status:         res.Status,
		AlreadyActive:  res.AlreadyActive,
		SagaID:         saga.ID,
	}

	// A retried activation whose first attempt committed but failed before
	// the coupon was recorded lands here as already active. The coupon
	// store rejects a second use by the same user.
	if decision != nil {
		_, err := s.coupons.Apply(ctx, coupon.ApplyParams{
			Decision:       decision,
			UserID:         p.UserID,
			SubscriptionID: res.SubscriptionID,
		})
		if err != nil {
			saga.CouponError = err.Error()
			log.WarnContext(ctx, "failed to apply coupon, subscription stays active",
				logger.CouponCode(decision.Code),
				logger.Error(err),
			)
		} else {
			result.CouponApplied = true
		}
	}

	s.step(ctx, log, saga, EventCommitted, nil)
	log.InfoContext(ctx, "subscription activated",
		logger.SubscriptionID(res.SubscriptionID),
		slog.String("plan", res.Plan),
		slog.Bool("already_active", res.AlreadyActive),
		slog.Bool("coupon_applied", result.CouponApplied),
	)
	return result, nil
}

func verifyRemote(remote *billing.ProviderSubscription, userID uuid.UUID, planID string) string {
	switch {
	case !remote.Status.Activatable():
		return "Subscription is not active at the payment provider"
	case remote.PlanID != planID:
		return "Subscription does not match the selected plan"
	case remote.UserID == "":
		return "Subscription is not linked to this user"
	case remote.UserID != userID.String():
		return "Subscription belongs to another user"
	}
	return ""
}

// CancelParams identify who cancels and why.
type CancelParams struct {
	UserID uuid.UUID
	Reason string
}

type CancellationResult struct {
	SubscriptionID   uuid.UUID  `json:"subscription_id"`
	Status           Status     `json:"status"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	AlreadyCancelled bool       `json:"already_cancelled,omitempty"`
	SagaID           uuid.UUID  `json:"saga_id"`
}

// Cancel cancels the user's active subscription at the provider first and
// then in the database. If the database step fails the provider
// subscription is reactivated once and the failure is reported as critical.
func (s *Service) Cancel(ctx context.Context, p CancelParams) (*CancellationResult, error) {
	if p.UserID == uuid.Nil {
		return nil, newError(ErrUnauthenticated, "Unauthorized", "", nil)
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		reason = DefaultCancellationReason
	}

	log := s.log.With(logger.UserID(p.UserID), logger.Provider(s.provider.Name()))

	unlock, err := s.lock(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub, err := s.store.ActiveSubscription(ctx, p.UserID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, newError(ErrNotFound, "No active subscription found", "", err)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to load active subscription", logger.Error(err))
		return nil, newError(ErrExternal, "Failed to load subscription", "", err)
	}

	saga := NewSaga(SagaCancellation, s.provider.Name(), p.UserID, sub.ExternalID, reason)
	saga.SubscriptionID = &sub.ID
	log = log.With(
		logger.SagaID(saga.ID),
		logger.SubscriptionID(sub.ID),
		logger.ExternalSubscriptionID(sub.ExternalID),
	)
	s.createSaga(ctx, log, saga)

	if err := s.provider.CancelSubscription(ctx, sub.ExternalID, reason); err != nil {
		s.step(ctx, log, saga, EventProviderFailed, err)
		log.ErrorContext(ctx, "failed to cancel subscription at provider", logger.Error(err))
		return nil, newError(ErrExternal, "Failed to cancel subscription with payment provider", err.Error(), err)
	}

	res, err := s.store.CancelSubscriptionAtomic(ctx, sub.ID, p.UserID, reason)
	if err == nil && !res.Success {
		err = fmt.Errorf("cancel_subscription_atomic: %s", res.Error)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to record cancellation, reactivating at provider", logger.Error(err))
		return nil, s.compensate(ctx, log, saga, err, compensation{
			call: func(ctx context.Context) error {
				return s.provider.ActivateSubscription(ctx, sub.ExternalID, reasonRollbackCancellation)
			},
			message:       "Failed to update subscription status",
			detailsOK:     fmt.Sprintf("subscription %s was reactivated at the payment provider", sub.ExternalID),
			detailsFailed: fmt.Sprintf("subscription %s is cancelled at the payment provider but still active here", sub.ExternalID),
			critical:      true,
		})
	}

	s.step(ctx, log, saga, EventCommitted, nil)
	log.InfoContext(ctx, "subscription cancelled", slog.Bool("already_cancelled", res.AlreadyCancelled))

	return &CancellationResult{
		SubscriptionID:   res.SubscriptionID,
		Status:           res.Status,
		CancelledAt:      res.CancelledAt,
		AlreadyCancelled: res.AlreadyCancelled,
		SagaID:           saga.ID,
	}, nil
}

// Current returns the user's active subscription.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, newError(ErrUnauthenticated, "Unauthorized", "", nil)
	}
	sub, err := s.store.ActiveSubscription(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, newError(ErrNotFound, "No active subscription found", "", err)
	}
	if err != nil {
		return nil, newError(ErrExternal, "Failed to load subscription", "", err)
	}
	return sub, nil
}

type compensation struct {
	call          func(ctx context.Context) error
	message       string
	detailsOK     string
	detailsFailed string
	// critical flags the response even when compensation succeeded.
	critical bool
}

// compensate makes exactly one compensating provider call and records its
// outcome on the saga.
func (s *Service) compensate(ctx context.Context, log *slog.Logger, saga *Saga, cause error, c compensation) *Error {
	s.step(ctx, log, saga, EventCommitFailed, cause)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	if err := c.call(cctx); err != nil {
		log.ErrorContext(ctx, "compensation failed, provider and database disagree",
			logger.Errors(cause, err),
		)
		s.step(ctx, log, saga, EventCompensationFailed, fmt.Errorf("%v; compensation: %w", cause, err))
		s.alert(ctx, log, saga)
		return newError(ErrCriticalInconsistency, c.message, c.detailsFailed, errors.Join(cause, err))
	}

	log.WarnContext(ctx, "compensation succeeded")
	s.step(ctx, log, saga, EventCompensated, nil)
	e := newError(ErrExternal, c.message, c.detailsOK, cause)
	e.Critical = e.Critical || c.critical
	return e
}

func (s *Service) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if errors.Is(err, ErrLockHeld) {
		return nil, newError(ErrConflict, "Another billing operation is in progress", "", err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "failed to acquire billing lock", logger.UserID(userID), logger.Error(err))
		return nil, newError(ErrExternal, "Billing is temporarily unavailable", "", err)
	}
	return unlock, nil
}

// createSaga and step persist the saga log. Persistence failures are
// logged and never change the outcome of the operation.
func (s *Service) createSaga(ctx context.Context, log *slog.Logger, saga *Saga) {
	if err := s.sagas.CreateSaga(context.WithoutCancel(ctx), saga); err != nil {
		log.ErrorContext(ctx, "failed to persist billing saga", logger.Error(err))
	}
}

func (s *Service) step(ctx context.Context, log *slog.Logger, saga *Saga, event SagaEvent, cause error) {
	if cause != nil {
		saga.LastError = cause.Error()
	}
	from := saga.State
	if err := saga.Fire(ctx, event); err != nil {
		log.ErrorContext(ctx, "invalid billing saga transition",
			slog.String("state", string(from)),
			logger.Event(string(event)),
			logger.Error(err),
		)
		return
	}
	if err := s.sagas.UpdateSaga(context.WithoutCancel(ctx), saga); err != nil {
		log.ErrorContext(ctx, "failed to persist billing saga transition",
			slog.String("state", string(saga.State)),
			logger.Error(err),
		)
	}
}

func (s *Service) alert(ctx context.Context, log *slog.Logger, saga *Saga) {
	if err := s.notifier.NotifyCritical(context.WithoutCancel(ctx), saga); err != nil {
		log.ErrorContext(ctx, "failed to alert operators about critical saga", logger.Error(err))
	}
}
