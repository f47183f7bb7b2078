// Package ratelimiter provides token bucket rate limiting backed by Redis,
// plus HTTP middleware.
//
// Buckets allow bursts up to Capacity and refill RefillRate tokens every
// RefillInterval. RedisStore evaluates refill and consumption in a single Lua
// script so concurrent requests on different replicas see the same bucket.
//
//	store := ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix("ratelimit:coupon:"))
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: 6 * time.Second,
//	})
//
//	r.With(ratelimiter.Middleware(limiter, userKey)).Post("/coupons/validate", h)
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining,
// X-RateLimit-Reset, and on denial Retry-After.
package ratelimiter
