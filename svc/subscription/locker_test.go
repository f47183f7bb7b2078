package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/pkg/redis"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

func TestRedisLocker(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := subscription.NewRedisLocker(redis.NewLocker(client, "billing:lock:", 30*time.Second), nil)
	userID := uuid.New()

	unlock, err := locker.Lock(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("billing:lock:"+userID.String()))

	_, err = locker.Lock(context.Background(), userID)
	assert.ErrorIs(t, err, subscription.ErrLockHeld)

	otherUnlock, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err, "locks are per user")
	otherUnlock()

	unlock()
	assert.False(t, mr.Exists("billing:lock:"+userID.String()))

	unlock, err = locker.Lock(context.Background(), userID)
	require.NoError(t, err)
	unlock()
}

func TestService_WithRedisLocker_Conflict(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := subscription.NewRedisLocker(redis.NewLocker(client, "billing:lock:", 30*time.Second), nil)

	f := newFixture(t, subscription.WithLocker(locker))
	unlock, err := locker.Lock(context.Background(), f.userID)
	require.NoError(t, err)
	defer unlock()

	_, err = f.svc.Cancel(context.Background(), subscription.CancelParams{UserID: f.userID})
	require.ErrorIs(t, err, subscription.ErrConflict)
	f.provider.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything)
}
