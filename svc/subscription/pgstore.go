package subscription

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coachlatam/coachlatam/pkg/pg"
)

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore implements Store and SagaStore on Postgres. It must use a
// connection allowed to run the subscription procedures.
type PGStore struct {
	db DB
}

// NewPGStore returns a store over a pool or transaction.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const subscriptionColumns = `id, user_id, paypal_subscription_id, paypal_plan_id, plan, status,
	cancelled_at, COALESCE(cancellation_reason, ''), created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.ExternalID, &s.ExternalPlanID, &s.Plan, &s.Status,
		&s.CancelledAt, &s.CancellationReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (s *PGStore) ActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND status = 'active'`, userID))
}

func (s *PGStore) SubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE paypal_subscription_id = $1`, externalID))
}

func (s *PGStore) CreateSubscriptionAtomic(ctx context.Context, p CreateParams) (*ProcedureResult, error) {
	return s.procedure(ctx, "create_subscription_atomic",
		`SELECT create_subscription_atomic($1, $2, $3, $4)`,
		p.UserID, p.ExternalID, p.ExternalPlanID, p.Plan)
}

func (s *PGStore) CancelSubscriptionAtomic(ctx context.Context, subscriptionID, userID uuid.UUID, reason string) (*ProcedureResult, error) {
	return s.procedure(ctx, "cancel_subscription_atomic",
		`SELECT cancel_subscription_atomic($1, $2, $3)`,
		subscriptionID, userID, reason)
}

func (s *PGStore) procedure(ctx context.Context, name, sql string, args ...any) (*ProcedureResult, error) {
	var raw []byte
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var res ProcedureResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%s: decode result: %w", name, err)
	}
	return &res, nil
}

func (s *PGStore) WebhookProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID).Scan(&exists)
	return exists, err
}

func (s *PGStore) MarkWebhookProcessed(ctx context.Context, provider, eventID, eventType string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO webhook_events (event_id, provider, event_type) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id) DO NOTHING`, eventID, provider, eventType)
	return err
}

const sagaColumns = `id, kind, provider, user_id, external_subscription_id, subscription_id, state,
	compensation, reason, last_error, coupon_error, resolution_note, created_at, updated_at, resolved_at`

func (s *PGStore) CreateSaga(ctx context.Context, g *Saga) error {
	_, err := s.db.Exec(ctx, `INSERT INTO billing_sagas (`+sagaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		g.ID, g.Kind, g.Provider, g.UserID, g.ExternalSubscriptionID, g.SubscriptionID, g.State,
		g.Compensation, g.Reason, g.LastError, g.CouponError, g.ResolutionNote,
		g.CreatedAt, g.UpdatedAt, g.ResolvedAt)
	return err
}

func (s *PGStore) UpdateSaga(ctx context.Context, g *Saga) error {
	tag, err := s.db.Exec(ctx, `UPDATE billing_sagas SET
			subscription_id = $2, state = $3, compensation = $4, last_error = $5,
			coupon_error = $6, resolution_note = $7, updated_at = $8, resolved_at = $9
		WHERE id = $1`,
		g.ID, g.SubscriptionID, g.State, g.Compensation, g.LastError,
		g.CouponError, g.ResolutionNote, g.UpdatedAt, g.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSagaNotFound
	}
	return nil
}

func scanSaga(row pgx.Row) (*Saga, error) {
	var g Saga
	err := row.Scan(&g.ID, &g.Kind, &g.Provider, &g.UserID, &g.ExternalSubscriptionID, &g.SubscriptionID,
		&g.State, &g.Compensation, &g.Reason, &g.LastError, &g.CouponError, &g.ResolutionNote,
		&g.CreatedAt, &g.UpdatedAt, &g.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGStore) GetSaga(ctx context.Context, id uuid.UUID) (*Saga, error) {
	g, err := scanSaga(s.db.QueryRow(ctx, `SELECT `+sagaColumns+` FROM billing_sagas WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, ErrSagaNotFound
	}
	return g, err
}

func (s *PGStore) ListSagas(ctx context.Context, state SagaState, limit int) ([]Saga, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sagaColumns+` FROM billing_sagas
		WHERE ($1 = '' OR state = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(state), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Saga, error) {
		g, err := scanSaga(row)
		if err != nil {
			return Saga{}, err
		}
		return *g, nil
	})
}

var _ interface {
	Store
	SagaStore
} = (*PGStore)(nil)
