package subscription_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/coachlatam/coachlatam/pkg/billing"
	"github.com/coachlatam/coachlatam/svc/coupon"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return billing.ProviderPayPal }

func (m *mockProvider) GetSubscription(ctx context.Context, id string) (*billing.ProviderSubscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*billing.ProviderSubscription)
	return sub, args.Error(1)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *mockProvider) ActivateSubscription(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*billing.WebhookEvent, error) {
	args := m.Called(ctx, payload, header)
	evt, _ := args.Get(0).(*billing.WebhookEvent)
	return evt, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ActiveSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) SubscriptionByExternalID(ctx context.Context, externalID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, externalID)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) CreateSubscriptionAtomic(ctx context.Context, p subscription.CreateParams) (*subscription.ProcedureResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*subscription.ProcedureResult)
	return res, args.Error(1)
}

func (m *mockStore) CancelSubscriptionAtomic(ctx context.Context, subscriptionID, userID uuid.UUID, reason string) (*subscription.ProcedureResult, error) {
	args := m.Called(ctx, subscriptionID, userID, reason)
	res, _ := args.Get(0).(*subscription.ProcedureResult)
	return res, args.Error(1)
}

func (m *mockStore) WebhookProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkWebhookProcessed(ctx context.Context, provider, eventID, eventType string) error {
	return m.Called(ctx, provider, eventID, eventType).Error(0)
}

// memSagas is an in-memory SagaStore that keeps every persisted version.
type memSagas struct {
	mu      sync.Mutex
	sagas   map[uuid.UUID]subscription.Saga
	history []subscription.SagaState
}

func newMemSagas() *memSagas {
	return &memSagas{sagas: make(map[uuid.UUID]subscription.Saga)}
}

func (m *memSagas) CreateSaga(_ context.Context, s *subscription.Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sagas[s.ID] = *s
	m.history = append(m.history, s.State)
	return nil
}

func (m *memSagas) UpdateSaga(_ context.Context, s *subscription.Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sagas[s.ID]; !ok {
		return subscription.ErrSagaNotFound
	}
	m.sagas[s.ID] = *s
	m.history = append(m.history, s.State)
	return nil
}

func (m *memSagas) GetSaga(_ context.Context, id uuid.UUID) (*subscription.Saga, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sagas[id]
	if !ok {
		return nil, subscription.ErrSagaNotFound
	}
	return &s, nil
}

func (m *memSagas) ListSagas(_ context.Context, state subscription.SagaState, limit int) ([]subscription.Saga, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscription.Saga
	for _, s := range m.sagas {
		if state == "" || s.State == state {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// only returns the single saga recorded in a test.
func (m *memSagas) only() subscription.Saga {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sagas) != 1 {
		panic("expected exactly one saga")
	}
	for _, s := range m.sagas {
		return s
	}
	return subscription.Saga{}
}

type mockCoupons struct {
	mock.Mock
}

func (m *mockCoupons) Validate(ctx context.Context, p coupon.ValidateParams) (*coupon.Decision, error) {
	args := m.Called(ctx, p)
	d, _ := args.Get(0).(*coupon.Decision)
	return d, args.Error(1)
}

func (m *mockCoupons) Apply(ctx context.Context, p coupon.ApplyParams) (*coupon.Application, error) {
	args := m.Called(ctx, p)
	a, _ := args.Get(0).(*coupon.Application)
	return a, args.Error(1)
}

type heldLocker struct{}

func (heldLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	return nil, subscription.ErrLockHeld
}

type recordingNotifier struct {
	mu    sync.Mutex
	sagas []subscription.Saga
}

func (n *recordingNotifier) NotifyCritical(_ context.Context, s *subscription.Saga) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sagas = append(n.sagas, *s)
	return nil
}
