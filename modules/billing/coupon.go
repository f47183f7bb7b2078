package billing

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coachlatam/coachlatam/handler"
	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/binder"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/pkg/ratelimiter"
	"github.com/coachlatam/coachlatam/svc/coupon"
)

// CouponValidator is the part of coupon.Service the handler uses.
type CouponValidator interface {
	Validate(ctx context.Context, params coupon.ValidateParams) (*coupon.Decision, error)
}

// CouponHandler serves coupon validation for the checkout page.
type CouponHandler struct {
	svc     CouponValidator
	log     *slog.Logger
	limiter ratelimiter.RateLimiter
}

// CouponHandlerOption configures a CouponHandler.
type CouponHandlerOption func(*CouponHandler)

// WithRateLimiter limits coupon lookups per caller, so codes cannot be
// enumerated.
func WithRateLimiter(rl ratelimiter.RateLimiter) CouponHandlerOption {
	return func(h *CouponHandler) {
		h.limiter = rl
	}
}

// NewCouponHandler returns a handler without rate limiting unless
// WithRateLimiter is given.
func NewCouponHandler(svc CouponValidator, log *slog.Logger, opts ...CouponHandlerOption) *CouponHandler {
	if log == nil {
		log = slog.Default()
	}
	h := &CouponHandler{svc: svc, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns the router for the coupon endpoints.
func (h *CouponHandler) Handle() http.Handler {
	r := chi.NewRouter()

	if h.limiter != nil {
		r.Use(ratelimiter.Middleware(h.limiter,
			ratelimiter.Composite(ratelimiter.Static("coupons"), callerKey),
			ratelimiter.WithDeniedHandler(h.denied),
			ratelimiter.WithErrorHandler(h.limiterFailed),
		))
	}

	r.Post("/validate", handler.Wrap(h.validate,
		handler.WithBinders[handler.Context, ValidateCouponRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, ValidateCouponRequest](errorHandler(h.log)),
	))

	return r
}

// callerKey keys the limit on the authenticated user, falling back to the
// client address. Behind a proxy chi's RealIP middleware must run first.
func callerKey(r *http.Request) string {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		return "user:" + id.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return "ip:" + host
}

func (h *CouponHandler) denied(w http.ResponseWriter, r *http.Request, res *ratelimiter.Result) {
	h.log.WarnContext(r.Context(), "coupon validation rate limited",
		slog.String("key", callerKey(r)),
		slog.String("retry_after", res.RetryAfter().String()),
	)
	body := handler.ErrorBody{
		Error:   "Too many coupon attempts",
		Details: "retry after " + strconv.Itoa(int(res.RetryAfter().Seconds())) + "s",
	}
	_ = handler.JSONError(http.StatusTooManyRequests, body).Render(w, r)
}

// limiterFailed answers 503 when the limiter store cannot be reached.
func (h *CouponHandler) limiterFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "coupon rate limiter unavailable", logger.Error(err))
	_ = handler.JSONError(http.StatusServiceUnavailable, handler.ErrorBody{Error: "Coupon validation is temporarily unavailable"}).Render(w, r)
}

type ValidateCouponRequest struct {
	Code   string `json:"code"`
	PlanID string `json:"planId,omitempty"`
}

func (h *CouponHandler) validate(ctx handler.Context, req ValidateCouponRequest) handler.Response {
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return failure(ctx, h.log, err)
	}

	d, err := h.svc.Validate(ctx, coupon.ValidateParams{
		Code:   req.Code,
		UserID: id.UserID,
		PlanID: req.PlanID,
	})
	if err != nil {
		return failure(ctx, h.log, err)
	}
	return handler.JSON(d)
}
