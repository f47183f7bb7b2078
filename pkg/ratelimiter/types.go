package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int       // Maximum tokens (bucket capacity)
	Remaining int       // Tokens remaining, negative when denied
	ResetAt   time.Time // Time of the next refill
}

// Allowed reports whether the request fits in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the next request.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config defines the token bucket configuration.
type Config struct {
	Capacity       int           `env:"CAPACITY" envDefault:"10"`        // Maximum tokens the bucket can hold (burst limit)
	RefillRate     int           `env:"REFILL_RATE" envDefault:"1"`      // Number of tokens added per refill interval
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"6s"` // How often tokens are added
}
