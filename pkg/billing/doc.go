// Package billing talks to the payment providers that own recurring
// subscriptions.
//
// Provider is implemented for PayPal (REST API, OAuth2 client credentials)
// and Paddle (paddle-go-sdk). Both normalize subscription statuses and
// webhook notifications into provider-neutral types. NewCircuitBreaker wraps
// any Provider so that a provider outage fails fast:
//
//	pp, err := billing.NewPayPalProvider(cfg)
//	if err != nil {
//		return err
//	}
//	provider := billing.NewCircuitBreaker(pp, breakerCfg, log)
//
// Errors are classified with ErrProviderUnavailable (transport failures,
// 5xx, 429, open breaker), ErrSubscriptionNotFound and
// ErrProviderRequestFailed. PayPal API errors are returned as *ProviderError
// carrying the response status and PayPal's name and message.
package billing
