package coupon

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore calls the coupon procedures defined in migrations/.
type PGStore struct {
	db Querier
}

// NewPGStore returns a store over a pool, connection or transaction.
func NewPGStore(db Querier) *PGStore {
	return &PGStore{db: db}
}

const (
	validateCouponSQL = `SELECT validate_coupon($1, $2, $3)`
	applyCouponSQL    = `SELECT apply_coupon($1, $2, $3, $4)`
)

func (s *PGStore) ValidateCoupon(ctx context.Context, code string, userID uuid.UUID, planID string) (*Decision, error) {
	var plan *string
	if planID != "" {
		plan = &planID
	}

	var raw []byte
	if err := s.db.QueryRow(ctx, validateCouponSQL, code, userID, plan).Scan(&raw); err != nil {
		return nil, fmt.Errorf("validate_coupon: %w", err)
	}

	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("validate_coupon: decode result: %w", err)
	}
	return &d, nil
}

func (s *PGStore) ApplyCoupon(ctx context.Context, couponID, userID, subscriptionID uuid.UUID, discountValue float64) (*Application, error) {
	var raw []byte
	if err := s.db.QueryRow(ctx, applyCouponSQL, couponID, userID, subscriptionID, discountValue).Scan(&raw); err != nil {
		return nil, fmt.Errorf("apply_coupon: %w", err)
	}

	var a Application
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("apply_coupon: decode result: %w", err)
	}
	return &a, nil
}
