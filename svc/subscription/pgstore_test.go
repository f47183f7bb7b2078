package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/svc/subscription"
)

type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if b, ok := dest[0].(*[]byte); ok {
		*b = r.raw
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	tag     pgconn.CommandTag
	lastSQL string
	args    []any
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.lastSQL, db.args = sql, args
	return db.row
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, assert.AnError
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.lastSQL, db.args = sql, args
	return db.tag, nil
}

func TestPGStore_CancelSubscriptionAtomic(t *testing.T) {
	t.Parallel()

	subID := uuid.New()
	db := &fakeDB{row: fakeRow{raw: []byte(`{"success":true,"subscription_id":"` + subID.String() +
		`","status":"cancelled","cancelled_at":"2026-10-19T10:00:00.123456+00:00"}`)}}

	res, err := subscription.NewPGStore(db).CancelSubscriptionAtomic(context.Background(), subID, uuid.New(), "User requested cancellation")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, subID, res.SubscriptionID)
	assert.Equal(t, subscription.StatusCancelled, res.Status)
	require.NotNil(t, res.CancelledAt)
	assert.Contains(t, db.lastSQL, "cancel_subscription_atomic")
	assert.Equal(t, "User requested cancellation", db.args[2])
}

func TestPGStore_CreateSubscriptionAtomic_Rejected(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: fakeRow{raw: []byte(`{"success":false,"error":"User already has an active subscription"}`)}}

	res, err := subscription.NewPGStore(db).CreateSubscriptionAtomic(context.Background(), subscription.CreateParams{
		UserID: uuid.New(), ExternalID: "I-1", ExternalPlanID: "P-PRO", Plan: "pro",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "User already has an active subscription", res.Error)
}

func TestPGStore_ActiveSubscription_NotFound(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := subscription.NewPGStore(db).ActiveSubscription(context.Background(), uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	_, err = subscription.NewPGStore(db).GetSaga(context.Background(), uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSagaNotFound)
}

func TestPGStore_UpdateSaga_Missing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	saga := subscription.NewSaga(subscription.SagaActivation, "paypal", uuid.New(), "I-1", "")

	err := subscription.NewPGStore(db).UpdateSaga(context.Background(), saga)
	assert.ErrorIs(t, err, subscription.ErrSagaNotFound)

	db.tag = pgconn.NewCommandTag("UPDATE 1")
	require.NoError(t, subscription.NewPGStore(db).UpdateSaga(context.Background(), saga))
	assert.Equal(t, saga.ID, db.args[0])
}
