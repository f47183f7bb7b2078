package subscription

import (
	"errors"
)

// Error kinds. Every *Error returned by Service matches exactly one of them
// with errors.Is.
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrExternal              = errors.New("external service error")
	ErrCriticalInconsistency = errors.New("critical inconsistency")
)

var (
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrSagaNotFound             = errors.New("saga not found")
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrLockHeld                 = errors.New("billing operation already in progress")
	ErrUnknownWebhookProvider   = errors.New("unknown webhook provider")
	ErrInvalidLockTTL           = errors.New("billing lock ttl too short")
)

// Error is a classified failure of a billing operation. Message is safe to
// show to the caller; Details carries extra context such as the external
// subscription id. Critical marks failures that need operator attention.
type Error struct {
	Kind     error
	Message  string
	Details  string
	Critical bool
	Err      error
}

func newError(kind error, message, details string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Details:  details,
		Critical: errors.Is(kind, ErrCriticalInconsistency),
		Err:      cause,
	}
}

func (e *Error) Error() string {
	msg := e.Kind.Error() + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
