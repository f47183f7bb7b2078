package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/coachlatam/coachlatam/pkg/logger"
)

// BreakerConfig controls the circuit breaker placed in front of a provider.
type BreakerConfig struct {
	Enabled          bool          `env:"BILLING_BREAKER_ENABLED" envDefault:"true"`
	FailureThreshold uint32        `env:"BILLING_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	MaxRequests      uint32        `env:"BILLING_BREAKER_MAX_REQUESTS" envDefault:"1"`
	Interval         time.Duration `env:"BILLING_BREAKER_INTERVAL" envDefault:"60s"`
	Timeout          time.Duration `env:"BILLING_BREAKER_TIMEOUT" envDefault:"30s"`
}

// CircuitBreaker trips after consecutive provider outages and fails fast
// with ErrProviderUnavailable while open. Client errors (4xx, bad
// signatures) do not count as failures.
type CircuitBreaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

// NewCircuitBreaker wraps p. A nil logger discards state changes.
func NewCircuitBreaker(p Provider, cfg BreakerConfig, log *slog.Logger) *CircuitBreaker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("billing provider circuit breaker state changed",
				logger.Provider(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
	}

	return &CircuitBreaker{next: p, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (b *CircuitBreaker) Name() string { return b.next.Name() }

func (b *CircuitBreaker) GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.GetSubscription(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*ProviderSubscription), nil
}

func (b *CircuitBreaker) CancelSubscription(ctx context.Context, id, reason string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.CancelSubscription(ctx, id, reason)
	})
	return err
}

func (b *CircuitBreaker) ActivateSubscription(ctx context.Context, id, reason string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.ActivateSubscription(ctx, id, reason)
	})
	return err
}

func (b *CircuitBreaker) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.ParseWebhook(ctx, payload, header)
	})
	if err != nil {
		return nil, err
	}
	return res.(*WebhookEvent), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

func (b *CircuitBreaker) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	return res, err
}
