// Access-decision HTTP handlers.
//
// This file exposes REST endpoints for entitlement and capability checks:
//   - GET  /products/{id}/access    (product entitlement guard)
//   - GET  /capabilities/{type}     (policy decision for a capability)
//   - POST /suggestions             (gated suggestion submission)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Every deny path maps to an
// explicit status + reason; no endpoint ever defaults to allow.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/veltix/go-access-backend/internal/http/middleware"
	"github.com/veltix/go-access-backend/internal/policy"
	"github.com/veltix/go-access-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// EntitlementGuard is the single legitimate gate for product-scoped access.
//
// Implementations must fail closed: any storage error resolves to a deny,
// never to implicit access.
type EntitlementGuard interface {
	// GuardProductAccess returns nil when userID holds an active entitlement
	// for productID, services.ErrUnauthenticated when no identity is present,
	// and services.ErrNoEntitlement otherwise.
	GuardProductAccess(ctx context.Context, userID, productID string) error
}

// CapabilityChecker evaluates plan/unlock/add-on policy for a capability.
type CapabilityChecker interface {
	// CheckCapability returns the policy decision for userID requesting
	// capability under the given plan tier.
	CheckCapability(ctx context.Context, userID, plan, capability string) policy.Decision
}

// CheckoutStarter begins a payment flow for a product.
type CheckoutStarter interface {
	// Begin creates (or replays) a pending order and gateway checkout session.
	Begin(ctx context.Context, userID, productID, idemKey string) (*services.Checkout, error)
}

// OrderReader answers order queries scoped to their owner.
type OrderReader interface {
	// Status resolves the point-in-time status of an order owned by userID.
	Status(ctx context.Context, userID, orderID string) (string, error)
}

//
// Handler wiring
//

// Handlers groups the public HTTP endpoints for access checks, checkout, and
// order queries. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	entSvc      EntitlementGuard
	accessSvc   CapabilityChecker
	checkoutSvc CheckoutStarter
	orderSvc    OrderReader
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ent EntitlementGuard, access CapabilityChecker, checkout CheckoutStarter, orders OrderReader) *Handlers {
	return &Handlers{entSvc: ent, accessSvc: access, checkoutSvc: checkout, orderSvc: orders}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). Empty when the request carries no identity; handlers translate
// that into 401, never into a shared fallback identity.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}

// planTier returns the caller's plan claim normalized through the policy
// package (unknown or absent tiers resolve to free).
func planTier(c *gin.Context) string {
	return string(policy.ParsePlan(middleware.PlanTier(c)))
}

//
// DTOs
//

// AccessResponse reports the outcome of an access or capability check.
type AccessResponse struct {
	Allowed bool `json:"allowed"`
	// Reason is set only on deny (see policy reason constants).
	Reason string `json:"reason,omitempty" example:"plan_not_allowed"`
}

// SuggestionRequest is the JSON payload for submitting a suggestion.
type SuggestionRequest struct {
	// Type selects the gated submission capability; currently only "suggestion".
	Type string `json:"type" example:"suggestion"`
	// Title is the suggestion headline (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Dark mode for dashboards"`
	// Body is the free-form description.
	Body string `json:"body" example:"It would help night-shift operators."`
}

//
// Handlers
//

// ProductAccess godoc
// @ID          productAccess
// @Summary     Check product access
// @Description Reports whether the current user holds an active entitlement for the product.
// @Tags        Access
// @Produce     json
//
// @Param       id  path  string  true  "Product ID"  example(prod_dashboards)
//
// @Success     200  {object} handlers.AccessResponse
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Failure     403  {object} handlers.ErrorResponse "No active entitlement"
// @Router      /products/{id}/access [get]
func (h *Handlers) ProductAccess(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("id"))
	if productID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product id required")
		return
	}

	err := h.entSvc.GuardProductAccess(c.Request.Context(), userID(c), productID)
	switch {
	case err == nil:
		ok(c, http.StatusOK, AccessResponse{Allowed: true})
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	default:
		fail(c, http.StatusForbidden, ErrCodeForbidden, "no active entitlement for this product")
	}
}

// CapabilityCheck godoc
// @ID          capabilityCheck
// @Summary     Evaluate a capability
// @Description Runs the policy evaluator (platform gate, plan eligibility, add-on requirement) for the named capability.
// @Tags        Access
// @Produce     json
//
// @Param       type  path  string  true  "Capability type"  example(suggestion.submit)
//
// @Success     200  {object} handlers.AccessResponse
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Router      /capabilities/{type} [get]
func (h *Handlers) CapabilityCheck(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	capability := strings.TrimSpace(c.Param("type"))
	if capability == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "capability type required")
		return
	}

	d := h.accessSvc.CheckCapability(c.Request.Context(), uid, planTier(c), capability)
	ok(c, http.StatusOK, AccessResponse{Allowed: d.Allowed, Reason: d.Reason})
}

// SubmitSuggestion godoc
// @ID          submitSuggestion
// @Summary     Submit a suggestion
// @Description Accepts a suggestion for asynchronous processing when the caller passes the submission policy gate.
// @Tags        Suggestions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SuggestionRequest  true  "Suggestion payload"
//
// @Success     202  {object} handlers.AccessResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Failure     403  {object} handlers.ErrorResponse "Policy denied"
// @Router      /suggestions [post]
func (h *Handlers) SubmitSuggestion(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	d := h.accessSvc.CheckCapability(c.Request.Context(), uid, planTier(c), policy.CapSuggestionSubmit)
	if !d.Allowed {
		fail(c, http.StatusForbidden, d.Reason, "suggestion submission denied")
		return
	}

	// Submission itself is handed to a downstream intake; this core only
	// decides admission.
	ok(c, http.StatusAccepted, AccessResponse{Allowed: true})
}
