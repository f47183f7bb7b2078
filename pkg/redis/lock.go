package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so a
// holder whose TTL expired cannot release a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks keyed by name.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block
// others.
func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	return &Locker{client: client, prefix: prefix, ttl: ttl}
}

// Lock is a held lock. Release it exactly once.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire takes the lock for key without waiting. It returns ErrLockHeld when
// another holder owns it.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token, err := randomToken()
	if err != nil {
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	fullKey := l.prefix + key
	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Join(ErrLockNotAcquired, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{client: l.client, key: fullKey, token: token}, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
