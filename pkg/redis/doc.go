// Package redis wraps github.com/redis/go-redis/v9 with a retrying Connect,
// a readiness check, and a token-guarded Locker used to serialize billing
// operations per user.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	locker := redis.NewLocker(client, "lock:billing:", 30*time.Second)
//
//	lk, err := locker.Acquire(ctx, userID.String())
//	if errors.Is(err, redis.ErrLockHeld) {
//	    // another request for this user is in flight
//	}
//	defer lk.Release(ctx)
package redis
