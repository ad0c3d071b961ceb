// Payment webhook HTTP handler.
//
// This file receives asynchronous confirmations from the payment provider:
//   - POST /webhooks/payment
//
// The raw body is verified against the provider signature before anything is
// trusted. Verified completion events funnel into the same idempotent
// settlement path the reconciliation sweep uses, so a webhook racing a sweep
// on the same order converges on a single entitlement.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veltix/go-access-backend/internal/gateway"
	"github.com/veltix/go-access-backend/internal/http/middleware"
	"github.com/veltix/go-access-backend/internal/services"
)

// Settler settles a confirmed order by id. Implemented by the reconciler so
// the webhook fast path and the sweep share one idempotent transition.
type Settler interface {
	SettleByOrderID(ctx context.Context, orderID string) error
}

// WebhookHandlers holds the dependencies of the provider-facing surface.
type WebhookHandlers struct {
	gw      gateway.Client
	settler Settler
}

// NewWebhook constructs the webhook handler group.
func NewWebhook(gw gateway.Client, settler Settler) *WebhookHandlers {
	return &WebhookHandlers{gw: gw, settler: settler}
}

// maxWebhookBody bounds provider payloads; Stripe events are well under this.
const maxWebhookBody = 1 << 20 // 1 MiB

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Receive a payment provider event
// @Description Verifies the provider signature and settles the referenced order on completion events. Unknown event types are acknowledged and ignored.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       Stripe-Signature  header  string  true  "Provider event signature"
//
// @Success     200  {string} string "Acknowledged"
// @Failure     400  {object} handlers.ErrorResponse "Unreadable payload or bad signature"
// @Failure     500  {object} handlers.ErrorResponse "Settlement failed; provider should retry"
// @Router      /webhooks/payment [post]
func (h *WebhookHandlers) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeWebhookInvalid, "unreadable payload")
		return
	}

	ev, err := h.gw.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		// Bad signatures are logged WITHOUT payload contents; the body is
		// untrusted at this point.
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook signature rejected")
		fail(c, http.StatusBadRequest, ErrCodeWebhookInvalid, "signature verification failed")
		return
	}

	if ev.OrderID == "" {
		// Event types this service does not consume (or sessions created out
		// of band). Acknowledge so the provider stops retrying.
		middleware.LoggerFrom(c).Debug().Str("type", ev.Type).Msg("webhook event ignored")
		ok(c, http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.settler.SettleByOrderID(c.Request.Context(), ev.OrderID); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			// Reference to an order this instance never created; ack rather
			// than force endless provider retries.
			middleware.LoggerFrom(c).Warn().Str("order_id", ev.OrderID).Msg("webhook for unknown order")
			ok(c, http.StatusOK, gin.H{"received": true})
			return
		}
		// Transient settlement failure: 5xx so the provider redelivers and the
		// sweep acts as the backstop.
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "settlement failed")
		return
	}

	ok(c, http.StatusOK, gin.H{"received": true})
}
