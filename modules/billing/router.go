package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which handlers the billing module mounts.
// Each handler is optional and is only mounted if provided.
type RouterOptions struct {
	Subscription Mountable
	Coupons      Mountable
	Webhooks     Mountable

	// Authenticate guards the user facing routes. Webhooks are never
	// authenticated this way: providers sign their payloads instead.
	Authenticate func(http.Handler) http.Handler
}

// Router creates the billing API router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/api", billing.Router(billing.RouterOptions{
//	    Subscription: billing.NewSubscriptionHandler(subSvc, log),
//	    Coupons:      billing.NewCouponHandler(couponSvc, log, billing.WithRateLimiter(rl)),
//	    Webhooks:     billing.NewWebhookHandler(subSvc, log),
//	    Authenticate: auth.Middleware(auth.MiddlewareConfig{Verifier: v, OnError: billing.Unauthorized}),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Group(func(user chi.Router) {
		if opts.Authenticate != nil {
			user.Use(opts.Authenticate)
		}
		if opts.Subscription != nil {
			user.Mount("/subscription", opts.Subscription.Handle())
		}
		if opts.Coupons != nil {
			user.Mount("/coupons", opts.Coupons.Handle())
		}
	})

	if opts.Webhooks != nil {
		r.Mount("/webhooks", opts.Webhooks.Handle())
	}

	return r
}
