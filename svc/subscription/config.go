package subscription

import (
	"fmt"
	"time"
)

// Config holds the billing flow settings.
type Config struct {
	PlansFile           string        `env:"BILLING_PLANS_FILE" envDefault:"config/plans.yaml"`
	LockTTL             time.Duration `env:"BILLING_LOCK_TTL" envDefault:"120s"`
	LockPrefix          string        `env:"BILLING_LOCK_PREFIX" envDefault:"billing:lock:"`
	CompensationTimeout time.Duration `env:"BILLING_COMPENSATION_TIMEOUT" envDefault:"30s"`
	OpsAlertEmail       string        `env:"OPS_ALERT_EMAIL"`
}

// Validate checks that the billing lock outlives the longest critical
// section it guards: one provider call followed by a compensating call.
// providerCallTimeout is the worst case of a single provider call.
func (c Config) Validate(providerCallTimeout time.Duration) error {
	need := providerCallTimeout + c.CompensationTimeout
	if c.LockTTL <= need {
		return fmt.Errorf("%w: BILLING_LOCK_TTL is %s, must exceed %s", ErrInvalidLockTTL, c.LockTTL, need)
	}
	return nil
}
