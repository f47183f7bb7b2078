package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")

	ErrLockHeld        = errors.New("lock is held by another operation")
	ErrLockNotAcquired = errors.New("failed to acquire lock")
	ErrLockLost        = errors.New("lock expired or was taken over before release")
)
