package coupon_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/svc/coupon"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ValidateCoupon(ctx context.Context, code string, userID uuid.UUID, planID string) (*coupon.Decision, error) {
	args := m.Called(ctx, code, userID, planID)
	d, _ := args.Get(0).(*coupon.Decision)
	return d, args.Error(1)
}

func (m *mockStore) ApplyCoupon(ctx context.Context, couponID, userID, subscriptionID uuid.UUID, discountValue float64) (*coupon.Application, error) {
	args := m.Called(ctx, couponID, userID, subscriptionID, discountValue)
	a, _ := args.Get(0).(*coupon.Application)
	return a, args.Error(1)
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SAVE20", coupon.NormalizeCode("  save20\n"))
	assert.Equal(t, "", coupon.NormalizeCode("   "))
}

func TestService_Validate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	couponID := uuid.New()

	t.Run("normalizes the code and returns the decision verbatim", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		want := &coupon.Decision{
			Valid:         true,
			CouponID:      &couponID,
			Code:          "SAVE20",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: 20,
			Description:   "20% off",
		}
		store.On("ValidateCoupon", mock.Anything, "SAVE20", userID, "P-PRO").Return(want, nil).Once()

		got, err := coupon.NewService(store, nil).Validate(context.Background(), coupon.ValidateParams{
			Code:   " save20 ",
			UserID: userID,
			PlanID: "P-PRO",
		})
		require.NoError(t, err)
		assert.Same(t, want, got)
		store.AssertExpectations(t)
	})

	t.Run("repeated validation has no side effects", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ValidateCoupon", mock.Anything, "SAVE20", userID, "P-PRO").
			Return(&coupon.Decision{Valid: true, CouponID: &couponID, Code: "SAVE20", DiscountType: coupon.DiscountPercentage, DiscountValue: 20}, nil).
			Twice()

		svc := coupon.NewService(store, nil)
		params := coupon.ValidateParams{Code: "save20", UserID: userID, PlanID: "P-PRO"}
		first, err := svc.Validate(context.Background(), params)
		require.NoError(t, err)
		second, err := svc.Validate(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.True(t, second.Valid)
		store.AssertNumberOfCalls(t, "ValidateCoupon", 2)
		store.AssertNotCalled(t, "ApplyCoupon", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid coupon is a decision, not an error", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ValidateCoupon", mock.Anything, "OLD", userID, "").
			Return(&coupon.Decision{Valid: false, Error: "Coupon has expired"}, nil)

		got, err := coupon.NewService(store, nil).Validate(context.Background(), coupon.ValidateParams{Code: "old", UserID: userID})
		require.NoError(t, err)
		assert.False(t, got.Valid)
		assert.Equal(t, "Coupon has expired", got.Error)
	})

	t.Run("empty code", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		_, err := coupon.NewService(store, nil).Validate(context.Background(), coupon.ValidateParams{Code: "  ", UserID: userID})
		assert.ErrorIs(t, err, coupon.ErrEmptyCode)
		store.AssertNotCalled(t, "ValidateCoupon", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()
		_, err := coupon.NewService(&mockStore{}, nil).Validate(context.Background(), coupon.ValidateParams{Code: "SAVE20"})
		assert.ErrorIs(t, err, coupon.ErrMissingUser)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ValidateCoupon", mock.Anything, "SAVE20", userID, "").Return(nil, errors.New("connection reset"))

		_, err := coupon.NewService(store, nil).Validate(context.Background(), coupon.ValidateParams{Code: "SAVE20", UserID: userID})
		assert.ErrorIs(t, err, coupon.ErrDecisionFailed)
	})
}

func TestService_Apply(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	subID := uuid.New()
	couponID := uuid.New()
	decision := &coupon.Decision{
		Valid:         true,
		CouponID:      &couponID,
		Code:          "SAVE20",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: 20,
	}

	t.Run("records the coupon's own discount value", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		appID := uuid.New()
		store.On("ApplyCoupon", mock.Anything, couponID, userID, subID, float64(20)).
			Return(&coupon.Application{Success: true, ApplicationID: &appID, DiscountType: coupon.DiscountPercentage, DiscountValue: 20}, nil).Once()

		app, err := coupon.NewService(store, nil).Apply(context.Background(), coupon.ApplyParams{
			Decision:       decision,
			UserID:         userID,
			SubscriptionID: subID,
		})
		require.NoError(t, err)
		assert.Equal(t, float64(20), app.DiscountValue)
		assert.Equal(t, coupon.DiscountPercentage, app.DiscountType)
		store.AssertExpectations(t)
	})

	t.Run("unsuccessful application", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ApplyCoupon", mock.Anything, couponID, userID, subID, float64(20)).
			Return(&coupon.Application{Success: false, Error: "Coupon already used"}, nil)

		_, err := coupon.NewService(store, nil).Apply(context.Background(), coupon.ApplyParams{Decision: decision, UserID: userID, SubscriptionID: subID})
		assert.ErrorIs(t, err, coupon.ErrApplyFailed)
		assert.Contains(t, err.Error(), "Coupon already used")
	})

	t.Run("rejects invalid decisions", func(t *testing.T) {
		t.Parallel()
		_, err := coupon.NewService(&mockStore{}, nil).Apply(context.Background(), coupon.ApplyParams{Decision: &coupon.Decision{Valid: false}})
		assert.ErrorIs(t, err, coupon.ErrInvalidDecision)
	})
}
