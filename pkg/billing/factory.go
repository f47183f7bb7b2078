package billing

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// paddleCallTimeout bounds a Paddle call. The SDK client has no timeout of
// its own.
const paddleCallTimeout = 30 * time.Second

// Config selects and configures the active provider.
type Config struct {
	Provider string `env:"BILLING_PROVIDER" envDefault:"paypal"`
	PayPal   PayPalConfig
	Paddle   PaddleConfig
	Breaker  BreakerConfig
}

// New builds the configured provider, wrapped in a circuit breaker when
// enabled.
func New(cfg Config, log *slog.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderPayPal, "":
		p, err = NewPayPalProvider(cfg.PayPal)
	case ProviderPaddle:
		p, err = NewPaddleProvider(cfg.Paddle)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Breaker.Enabled {
		return NewCircuitBreaker(p, cfg.Breaker, log), nil
	}
	return p, nil
}

// CallTimeout is the longest a single provider call can take. A PayPal call
// is a token exchange followed by the API request, each bounded by
// PAYPAL_HTTP_TIMEOUT.
func (c Config) CallTimeout() time.Duration {
	switch strings.ToLower(c.Provider) {
	case ProviderPaddle:
		return paddleCallTimeout
	default:
		timeout := c.PayPal.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultPayPalHTTPTimeout
		}
		return 2 * timeout
	}
}
