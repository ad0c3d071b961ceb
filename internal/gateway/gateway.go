// Package gateway defines the narrow contract the core needs from the payment
// provider and implements it for Stripe. The rest of the application depends
// only on the Client interface, so services and tests can substitute fakes
// without touching provider SDK types.
package gateway

import (
	"context"
	"errors"
)

// PaymentStatus is the provider-neutral status of one payment attempt.
type PaymentStatus string

const (
	// StatusCaptured marks a settled, terminal-success payment. It is the only
	// status the reconciliation engine acts on.
	StatusCaptured PaymentStatus = "captured"
	// StatusPending marks an attempt still in flight.
	StatusPending PaymentStatus = "pending"
	// StatusFailed marks a terminally unsuccessful attempt.
	StatusFailed PaymentStatus = "failed"
)

// Payment is one payment attempt observed at the gateway.
type Payment struct {
	ID     string
	Status PaymentStatus
	Amount int64
}

// CheckoutSession is the provider-side session a buyer is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified, provider-neutral settlement notification.
type WebhookEvent struct {
	// Type is the provider event name (e.g. "checkout.session.completed").
	Type string
	// OrderID is the order the event settles, recovered from session metadata.
	// Empty when the event does not reference one of our orders.
	OrderID string
	// SessionID is the provider-side checkout session reference.
	SessionID string
}

// ErrBadSignature is returned when webhook payload verification fails.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Client is the payment gateway contract the core requires. All calls are
// bounded, single-shot requests; callers must treat errors as transient and
// fail closed.
type Client interface {
	// CreateCheckout opens a provider checkout session for the given order and
	// returns its reference and redirect URL.
	CreateCheckout(ctx context.Context, orderID, userID, productID string, amount int64, currency string) (*CheckoutSession, error)

	// ListPayments returns the payment attempts recorded at the gateway for an
	// external order reference. An empty slice means no attempt has been made.
	ListPayments(ctx context.Context, externalRef string) ([]Payment, error)

	// VerifyWebhook checks the payload signature and decodes the event. It
	// returns ErrBadSignature when the signature does not match.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// AnyCaptured reports whether at least one payment attempt has settled.
func AnyCaptured(ps []Payment) bool {
	for _, p := range ps {
		if p.Status == StatusCaptured {
			return true
		}
	}
	return false
}
