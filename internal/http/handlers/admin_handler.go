// Internal (operator-facing) HTTP handlers.
//
// This file exposes privileged endpoints guarded by a shared secret:
//   - POST /internal/reconcile   (trigger a reconciliation sweep now)
//   - POST /internal/addons      (grant an add-on to a user)
//
// These surfaces are for cron schedulers and support tooling, not end users.
// The secret check is deliberately constant-time.
package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/veltix/go-access-backend/internal/services"
)

// Reconciler triggers a sweep over stale pending orders.
type Reconciler interface {
	SweepOnce(ctx context.Context) (services.SweepResult, error)
}

// AddOnGranter grants capability add-ons outside the billing flow.
type AddOnGranter interface {
	GrantAddOn(ctx context.Context, userID, addOn, grantedBy, reason string) error
}

// InternalHandlers groups the shared-secret protected endpoints.
type InternalHandlers struct {
	recon   Reconciler
	granter AddOnGranter
	secret  string
}

// NewInternal constructs the internal handler group. secret must be non-empty
// or every request is rejected (fail closed, never open).
func NewInternal(recon Reconciler, granter AddOnGranter, secret string) *InternalHandlers {
	return &InternalHandlers{recon: recon, granter: granter, secret: secret}
}

// authorized checks the X-Internal-Token header against the shared secret.
func (h *InternalHandlers) authorized(c *gin.Context) bool {
	if h.secret == "" {
		return false
	}
	got := c.GetHeader("X-Internal-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// GrantAddOnRequest is the JSON payload for granting an add-on.
type GrantAddOnRequest struct {
	UserID string `json:"user_id" binding:"required" example:"user123"`
	// AddOn is the billing-domain add-on identifier.
	AddOn string `json:"addon" binding:"required" example:"addon_suggestion_slots"`
	// GrantedBy records the actor class: "system" or "admin".
	GrantedBy string `json:"granted_by" binding:"required" example:"admin"`
	Reason    string `json:"reason" example:"support ticket #4812"`
}

// TriggerReconcile godoc
// @ID          triggerReconcile
// @Summary     Run a reconciliation sweep
// @Description Sweeps stale pending orders against the payment gateway. Idempotent; safe to invoke redundantly or concurrently.
// @Tags        Internal
// @Produce     json
//
// @Param       X-Internal-Token  header  string  true  "Shared secret"
//
// @Success     200  {object} services.SweepResult
// @Failure     401  {object} handlers.ErrorResponse "Bad or missing token"
// @Failure     500  {object} handlers.ErrorResponse "Sweep could not start"
// @Router      /internal/reconcile [post]
func (h *InternalHandlers) TriggerReconcile(c *gin.Context) {
	if !h.authorized(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid internal token")
		return
	}

	res, err := h.recon.SweepOnce(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}

// GrantAddOn godoc
// @ID          grantAddOn
// @Summary     Grant an add-on to a user
// @Description Records an add-on grant. Granting the same (user, add-on) twice is a no-op; the existing grant wins.
// @Tags        Internal
// @Accept      json
// @Produce     json
//
// @Param       X-Internal-Token  header  string  true  "Shared secret"
// @Param       body              body    handlers.GrantAddOnRequest  true  "Grant payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Bad or missing token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /internal/addons [post]
func (h *InternalHandlers) GrantAddOn(c *gin.Context) {
	if !h.authorized(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid internal token")
		return
	}

	var req GrantAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, addon and granted_by required")
		return
	}

	err := h.granter.GrantAddOn(c.Request.Context(),
		strings.TrimSpace(req.UserID), strings.TrimSpace(req.AddOn),
		strings.TrimSpace(req.GrantedBy), strings.TrimSpace(req.Reason))
	if err != nil {
		if errors.Is(err, services.ErrGrantInvalid) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
