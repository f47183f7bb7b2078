package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/pkg/redis"
)

// Locker serializes billing operations per user. Lock returns ErrLockHeld
// when another operation for the same user is running.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// RedisLocker implements Locker with pkg/redis locks.
type RedisLocker struct {
	locker *redis.Locker
	log    *slog.Logger
}

// NewRedisLocker wraps a pkg/redis locker.
func NewRedisLocker(locker *redis.Locker, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &RedisLocker{locker: locker, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	lock, err := l.locker.Acquire(ctx, userID.String())
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.log.WarnContext(ctx, "failed to release billing lock",
				logger.UserID(userID),
				logger.Error(err),
			)
		}
	}, nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}
