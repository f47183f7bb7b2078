// Package billing mounts the CoachLatam billing API: subscription
// activation, cancellation and lookup, coupon validation and payment
// provider webhooks.
//
// Handlers translate *subscription.Error kinds into HTTP statuses and write
// error bodies of the form {"error", "details", "critical"}. Critical is
// set only when the database and the payment provider may disagree and an
// operator must reconcile them.
package billing
