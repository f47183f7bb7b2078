package billing

// NewPaddleProviderForTest builds a Paddle provider over a stubbed SDK client.
func NewPaddleProviderForTest(subs paddleSubscriptions, webhookSecret string) *PaddleProvider {
	return newPaddleProvider(subs, webhookSecret)
}
