// Package gateway – Stripe implementation of the payment gateway contract.
//
// Checkout sessions carry the order id in their metadata and client reference
// so webhook events and reconciliation queries can always be tied back to the
// originating order. Signature verification uses the endpoint's webhook secret
// and tolerates API version drift between SDK and account.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

const metadataOrderID = "order_id"

// StripeClient implements Client against the Stripe API.
type StripeClient struct {
	api           *client.API
	webhookSecret string

	// SuccessURL / CancelURL are where the buyer lands after checkout.
	SuccessURL string
	CancelURL  string
}

// NewStripeClient constructs a StripeClient with its own API handle (no global
// stripe.Key mutation).
func NewStripeClient(secretKey, webhookSecret, successURL, cancelURL string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{
		api:           api,
		webhookSecret: webhookSecret,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}
}

// CreateCheckout opens a one-time payment checkout session for the order.
// The order id travels in both the session metadata and the payment intent
// metadata so either object can be mapped back to the order later.
func (s *StripeClient) CreateCheckout(ctx context.Context, orderID, userID, productID string, amount int64, currency string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(s.SuccessURL),
		CancelURL:         stripe.String(s.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productID),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: orderID},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, orderID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ListPayments fetches the checkout session behind externalRef with its
// payment intent expanded and maps the intent to the provider-neutral shape.
// A session with no intent yet yields an empty list.
func (s *StripeClient) ListPayments(ctx context.Context, externalRef string) ([]Payment, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
			Expand:  []*string{stripe.String("payment_intent")},
		},
	}
	sess, err := s.api.CheckoutSessions.Get(externalRef, params)
	if err != nil {
		return nil, fmt.Errorf("fetch checkout session %s: %w", externalRef, err)
	}
	if sess.PaymentIntent == nil {
		return nil, nil
	}
	pi := sess.PaymentIntent
	return []Payment{{
		ID:     pi.ID,
		Status: mapIntentStatus(pi.Status),
		Amount: pi.Amount,
	}}, nil
}

// VerifyWebhook validates the Stripe-Signature header and decodes settlement
// events. Unknown event types verify successfully but carry no order id, so
// callers acknowledge and ignore them.
func (s *StripeClient) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, ErrBadSignature
	}

	out := &WebhookEvent{Type: string(event.Type)}
	if event.Type != "checkout.session.completed" {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session payload: %w", err)
	}
	out.SessionID = sess.ID
	if sess.Metadata != nil {
		out.OrderID = sess.Metadata[metadataOrderID]
	}
	return out, nil
}

// mapIntentStatus folds Stripe payment intent statuses into the neutral set.
// Succeeded means the funds were captured; canceled is terminal-negative;
// everything else is still in flight.
func mapIntentStatus(st stripe.PaymentIntentStatus) PaymentStatus {
	switch st {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
