package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/modules/billing"
	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/ratelimiter"
	"github.com/coachlatam/coachlatam/svc/coupon"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

const jwtSecret = "super-secret-jwt-token-with-at-least-32-characters"

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) Activate(ctx context.Context, p subscription.ActivateParams) (*subscription.ActivationResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*subscription.ActivationResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) Cancel(ctx context.Context, p subscription.CancelParams) (*subscription.CancellationResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*subscription.CancellationResult)
	return res, args.Error(1)
}

func (m *mockSubscriptions) Current(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*subscription.Subscription)
	return res, args.Error(1)
}

func (m *mockSubscriptions) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (*subscription.WebhookResult, error) {
	args := m.Called(ctx, provider, payload, header)
	res, _ := args.Get(0).(*subscription.WebhookResult)
	return res, args.Error(1)
}

type mockCoupons struct{ mock.Mock }

func (m *mockCoupons) Validate(ctx context.Context, params coupon.ValidateParams) (*coupon.Decision, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*coupon.Decision)
	return res, args.Error(1)
}

type fixture struct {
	subs    *mockSubscriptions
	coupons *mockCoupons
	server  *httptest.Server
	token   string
	userID  uuid.UUID
}

func setup(t *testing.T, couponOpts ...billing.CouponHandlerOption) *fixture {
	t.Helper()

	verifier, err := auth.NewVerifier(auth.Config{JWTSecret: jwtSecret, Audience: "authenticated"})
	require.NoError(t, err)

	f := &fixture{
		subs:    &mockSubscriptions{},
		coupons: &mockCoupons{},
		userID:  uuid.New(),
	}
	f.token, err = verifier.Issue(auth.Identity{UserID: f.userID, Email: "coach@example.com"}, time.Hour)
	require.NoError(t, err)

	router := billing.Router(billing.RouterOptions{
		Subscription: billing.NewSubscriptionHandler(f.subs, nil),
		Coupons:      billing.NewCouponHandler(f.coupons, nil, couponOpts...),
		Webhooks:     billing.NewWebhookHandler(f.subs, nil),
		Authenticate: auth.Middleware(auth.MiddlewareConfig{Verifier: verifier, OnError: billing.Unauthorized}),
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	t.Cleanup(func() {
		f.subs.AssertExpectations(t)
		f.coupons.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authenticated bool) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		subID := uuid.New()
		f.subs.On("Cancel", mock.Anything, subscription.CancelParams{UserID: f.userID, Reason: "Too expensive"}).
			Return(&subscription.CancellationResult{SubscriptionID: subID, Status: subscription.StatusCancelled}, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/subscription/cancel", `{"reason":" Too expensive "}`, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Subscription cancelled successfully", body["message"])
		data := body["data"].(map[string]any)
		assert.Equal(t, subID.String(), data["subscription_id"])
		assert.Equal(t, "cancelled", data["status"])
	})

	t.Run("empty body uses default reason", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		f.subs.On("Cancel", mock.Anything, subscription.CancelParams{UserID: f.userID}).
			Return(&subscription.CancellationResult{Status: subscription.StatusCancelled}, nil).Once()

		resp, _ := f.do(t, http.MethodPost, "/subscription/cancel", "", true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		resp, body := f.do(t, http.MethodPost, "/subscription/cancel", `{}`, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Unauthorized", body["error"])
		f.subs.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name     string
		err      error
		status   int
		critical bool
	}{
		{
			name:   "no active subscription",
			err:    &subscription.Error{Kind: subscription.ErrNotFound, Message: "No active subscription found"},
			status: http.StatusNotFound,
		},
		{
			name:   "operation in progress",
			err:    &subscription.Error{Kind: subscription.ErrConflict, Message: "Another billing operation is in progress"},
			status: http.StatusConflict,
		},
		{
			name:   "provider failure",
			err:    &subscription.Error{Kind: subscription.ErrExternal, Message: "Failed to cancel subscription with payment provider", Details: "I-123"},
			status: http.StatusInternalServerError,
		},
		{
			name:     "database failure after provider cancel",
			err:      &subscription.Error{Kind: subscription.ErrExternal, Message: "Failed to update subscription", Details: "I-123", Critical: true},
			status:   http.StatusInternalServerError,
			critical: true,
		},
		{
			name:     "compensation failed",
			err:      &subscription.Error{Kind: subscription.ErrCriticalInconsistency, Message: "Subscription state is inconsistent", Details: "I-123", Critical: true},
			status:   http.StatusInternalServerError,
			critical: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := setup(t)

			f.subs.On("Cancel", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			resp, body := f.do(t, http.MethodPost, "/subscription/cancel", `{}`, true)
			assert.Equal(t, tt.status, resp.StatusCode)
			subErr := tt.err.(*subscription.Error)
			assert.Equal(t, subErr.Message, body["error"])
			if subErr.Details != "" {
				assert.Equal(t, subErr.Details, body["details"])
			}
			if tt.critical {
				assert.Equal(t, true, body["critical"])
			} else {
				assert.NotContains(t, body, "critical")
			}
		})
	}
}

func TestActivate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		f.subs.On("Activate", mock.Anything, subscription.ActivateParams{
			UserID:                 f.userID,
			ExternalSubscriptionID: "I-123",
			ExternalPlanID:         "P-PRO",
			CouponCode:             "save20",
		}).Return(&subscription.ActivationResult{
			SubscriptionID: uuid.New(),
			Plan:           "pro",
			Status:         subscription.StatusActive,
			CouponApplied:  true,
		}, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/subscription/activate",
			`{"subscriptionId":"I-123","planId":"P-PRO","couponCode":"save20"}`, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Subscription activated successfully", body["message"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "pro", data["plan"])
		assert.Equal(t, true, data["coupon_applied"])
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		resp, _ := f.do(t, http.MethodPost, "/subscription/activate", `{"subscriptionId":"I-123","userId":"x"}`, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		f.subs.On("Activate", mock.Anything, mock.Anything).
			Return(nil, &subscription.Error{Kind: subscription.ErrValidation, Message: "Subscription is not active at the payment provider"}).Once()

		resp, body := f.do(t, http.MethodPost, "/subscription/activate", `{"subscriptionId":"I-123","planId":"P-PRO"}`, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Subscription is not active at the payment provider", body["error"])
	})
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	f := setup(t)
	f.subs.On("Current", mock.Anything, f.userID).
		Return(&subscription.Subscription{ID: uuid.New(), UserID: f.userID, Plan: "pro", Status: subscription.StatusActive}, nil).Once()

	resp, body := f.do(t, http.MethodGet, "/subscription", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pro", body["data"].(map[string]any)["plan"])
}

func TestValidateCoupon(t *testing.T) {
	t.Parallel()

	t.Run("decision is returned as is", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		couponID := uuid.New()
		f.coupons.On("Validate", mock.Anything, coupon.ValidateParams{Code: "save20", UserID: f.userID, PlanID: "pro"}).
			Return(&coupon.Decision{Valid: true, CouponID: &couponID, Code: "SAVE20", DiscountType: coupon.DiscountPercentage, DiscountValue: 20}, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"save20","planId":"pro"}`, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "SAVE20", body["code"])
		assert.InDelta(t, 20, body["discount_value"], 0.001)
	})

	t.Run("empty code", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		f.coupons.On("Validate", mock.Anything, mock.Anything).Return(nil, coupon.ErrEmptyCode).Once()

		resp, body := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"  "}`, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Coupon code is required", body["error"])
	})

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		f.coupons.On("Validate", mock.Anything, mock.Anything).
			Return(nil, errors.Join(coupon.ErrDecisionFailed, errors.New("connection reset"))).Once()

		resp, body := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"SAVE20"}`, true)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Failed to validate coupon", body["error"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		resp, _ := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"SAVE20"}`, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		bucket, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client), ratelimiter.Config{
			Capacity:       2,
			RefillRate:     1,
			RefillInterval: time.Minute,
		})
		require.NoError(t, err)

		f := setup(t, billing.WithRateLimiter(bucket))
		f.coupons.On("Validate", mock.Anything, mock.Anything).
			Return(&coupon.Decision{Valid: false, Error: "Coupon not found"}, nil).Twice()

		for range 2 {
			resp, body := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"GUESS"}`, true)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, false, body["valid"])
		}

		resp, body := f.do(t, http.MethodPost, "/coupons/validate", `{"code":"GUESS"}`, true)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "Too many coupon attempts", body["error"])
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("acknowledged without session", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		payload := `{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.CANCELLED"}`
		f.subs.On("HandleWebhook", mock.Anything, "paypal", []byte(payload), mock.Anything).
			Return(&subscription.WebhookResult{EventID: "WH-1", Type: "subscription_cancelled", Action: "cancelled"}, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/webhooks/paypal", payload, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "WH-1", body["event_id"])
		assert.Equal(t, "cancelled", body["action"])
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", &subscription.Error{Kind: subscription.ErrValidation, Message: "Webhook verification failed"}, http.StatusBadRequest},
		{"unknown provider", &subscription.Error{Kind: subscription.ErrNotFound, Message: "Unknown webhook provider"}, http.StatusNotFound},
		{"storage failure", &subscription.Error{Kind: subscription.ErrExternal, Message: "Failed to process webhook"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := setup(t)

			f.subs.On("HandleWebhook", mock.Anything, "stripe", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			resp, _ := f.do(t, http.MethodPost, "/webhooks/stripe", `{}`, false)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
