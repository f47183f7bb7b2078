package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/handler"
	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/binder"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

// SubscriptionService is the part of subscription.Service the handlers use.
type SubscriptionService interface {
	Activate(ctx context.Context, p subscription.ActivateParams) (*subscription.ActivationResult, error)
	Cancel(ctx context.Context, p subscription.CancelParams) (*subscription.CancellationResult, error)
	Current(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// SubscriptionHandler serves activation, cancellation and lookup of the
// caller's subscription.
type SubscriptionHandler struct {
	svc SubscriptionService
	log *slog.Logger
}

// NewSubscriptionHandler returns a handler logging to slog.Default when log
// is nil.
func NewSubscriptionHandler(svc SubscriptionService, log *slog.Logger) *SubscriptionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionHandler{svc: svc, log: log}
}

// Handle returns the subscription routes. The caller must be authenticated.
func (h *SubscriptionHandler) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/", handler.Wrap(h.current,
		handler.WithErrorHandler[handler.Context, struct{}](errorHandler(h.log)),
	))

	r.Post("/activate", handler.Wrap(h.activate,
		handler.WithBinders[handler.Context, ActivateRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, ActivateRequest](errorHandler(h.log)),
	))

	r.Post("/cancel", handler.Wrap(h.cancel,
		handler.WithBinders[handler.Context, CancelRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, CancelRequest](errorHandler(h.log)),
	))

	return r
}

// ActivateRequest carries the ids the provider checkout returned to the client.
type ActivateRequest struct {
	SubscriptionID string `json:"subscriptionId"`
	PlanID         string `json:"planId"`
	CouponCode     string `json:"couponCode,omitempty"`
}

func (h *SubscriptionHandler) activate(ctx handler.Context, req ActivateRequest) handler.Response {
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return failure(ctx, h.log, err)
	}

	res, err := h.svc.Activate(ctx, subscription.ActivateParams{
		UserID:                 id.UserID,
		ExternalSubscriptionID: req.SubscriptionID,
		ExternalPlanID:         req.PlanID,
		CouponCode:             req.CouponCode,
	})
	if err != nil {
		return failure(ctx, h.log, err)
	}

	message := "Subscription activated successfully"
	if res.AlreadyActive {
		message = "Subscription is already active"
	}
	return ok(message, res)
}

// CancelRequest may be sent with an empty body.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *SubscriptionHandler) cancel(ctx handler.Context, req CancelRequest) handler.Response {
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return failure(ctx, h.log, err)
	}

	res, err := h.svc.Cancel(ctx, subscription.CancelParams{
		UserID: id.UserID,
		Reason: req.Reason,
	})
	if err != nil {
		return failure(ctx, h.log, err)
	}

	message := "Subscription cancelled successfully"
	if res.AlreadyCancelled {
		message = "Subscription is already cancelled"
	}
	return ok(message, res)
}

func (h *SubscriptionHandler) current(ctx handler.Context, _ struct{}) handler.Response {
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return failure(ctx, h.log, err)
	}

	sub, err := h.svc.Current(ctx, id.UserID)
	if err != nil {
		return failure(ctx, h.log, err)
	}
	return ok("", sub)
}
