package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/pkg/ratelimiter"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupStore(t *testing.T) (*ratelimiter.RedisStore, *fakeClock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Now()}
	store := ratelimiter.NewRedisStore(client, ratelimiter.WithClock(clock.Now))
	return store, clock, mr
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	store, _, _ := setupStore(t)

	tests := []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1, RefillInterval: time.Microsecond},
	}
	for _, cfg := range tests {
		_, err := ratelimiter.NewBucket(store, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}

func TestBucket_Allow(t *testing.T) {
	ctx := context.Background()
	store, clock, mr := setupStore(t)

	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       3,
		RefillRate:     1,
		RefillInterval: time.Second,
	})
	require.NoError(t, err)

	t.Run("consumes up to capacity", func(t *testing.T) {
		for i := range 3 {
			res, err := limiter.Allow(ctx, "user-1")
			require.NoError(t, err)
			assert.True(t, res.Allowed())
			assert.Equal(t, 3, res.Limit)
			assert.Equal(t, 2-i, res.Remaining)
		}
	})

	t.Run("denies when empty", func(t *testing.T) {
		res, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, res.Allowed())
		assert.Equal(t, -1, res.Remaining)
	})

	t.Run("denied requests do not drain the bucket", func(t *testing.T) {
		_, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)

		clock.Advance(time.Second)
		res, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 0, res.Remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		res, err := limiter.Allow(ctx, "user-2")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("refill is capped at capacity", func(t *testing.T) {
		clock.Advance(time.Hour)
		res, err := limiter.AllowN(ctx, "user-1", 1)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("reset clears state", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "user-1"))
		assert.False(t, mr.Exists("ratelimit:user-1"))
	})

	t.Run("keys expire", func(t *testing.T) {
		_, err := limiter.Allow(ctx, "user-3")
		require.NoError(t, err)
		assert.Greater(t, mr.TTL("ratelimit:user-3"), time.Duration(0))
	})

	t.Run("invalid token count", func(t *testing.T) {
		_, err := limiter.AllowN(ctx, "user-1", 0)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	})
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, _, mr := setupStore(t)
	mr.Close()

	_, _, err := store.ConsumeTokens(context.Background(), "k", 1, ratelimiter.Config{
		Capacity: 1, RefillRate: 1, RefillInterval: time.Second,
	})
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}

func TestMiddleware(t *testing.T) {
	store, _, _ := setupStore(t)
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Minute,
	})
	require.NoError(t, err)

	userKey := func(r *http.Request) string { return r.Header.Get("X-User") }
	var deniedCalls int
	mw := ratelimiter.Middleware(limiter,
		ratelimiter.Composite(ratelimiter.Static("coupon"), userKey),
		ratelimiter.WithDeniedHandler(func(w http.ResponseWriter, r *http.Request, res *ratelimiter.Result) {
			deniedCalls++
			w.WriteHeader(http.StatusTooManyRequests)
		}),
	)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/coupons/validate", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("u1").Code)
	rec := do("u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, deniedCalls)

	assert.Equal(t, http.StatusOK, do("u2").Code)
}

func TestMiddleware_StoreError(t *testing.T) {
	store, _, mr := setupStore(t)
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	require.NoError(t, err)
	mr.Close()

	h := ratelimiter.Middleware(limiter, ratelimiter.Static("k"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestComposite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	empty := func(*http.Request) string { return "" }
	long := func(*http.Request) string { return string(make([]byte, 80)) }

	assert.Equal(t, "", ratelimiter.Composite(empty)(req))
	assert.Equal(t, "a", ratelimiter.Composite(ratelimiter.Static("a"), empty)(req))
	assert.Equal(t, "a:b", ratelimiter.Composite(ratelimiter.Static("a"), ratelimiter.Static("b"))(req))
	assert.LessOrEqual(t, len(ratelimiter.Composite(ratelimiter.Static("a"), long)(req)), 64)
}
