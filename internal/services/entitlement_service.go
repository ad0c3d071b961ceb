// Package services – EntitlementService
//
// This file implements the EntitlementService, the authoritative resolver for
// "does user U hold active access to product P". Every product-gated read in
// the application must route through GuardProductAccess so the fail-closed
// contract lives in exactly one place: blank identifiers and backing-store
// errors always resolve to a denial, never to an exception and never to a
// default allow.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/repo"
)

// EntitlementService answers point-in-time entitlement questions. It is
// read-only with respect to request-scoped state and safe for concurrent use.
type EntitlementService struct {
	// DB is the database handle used for entitlement lookups.
	DB *gorm.DB
}

// HasActiveEntitlement reports whether userID holds an active entitlement for
// productID.
//
// Fail-closed semantics:
//   - A blank userID or productID returns false without contacting storage.
//   - A backing-store error is logged and returns false; it is never
//     propagated to callers and never defaults to true.
func (s *EntitlementService) HasActiveEntitlement(ctx context.Context, userID, productID string) bool {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		return false
	}
	ok, err := repo.HasActiveEntitlement(ctx, s.DB, userID, productID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("product_id", productID).
			Msg("entitlement lookup failed; denying")
		return false
	}
	return ok
}

// GuardProductAccess is the single legitimate caller path for product-gated
// reads and downloads. It distinguishes the absence of identity from the
// absence of entitlement:
//
//   - ErrUnauthenticated when userID is blank (no authenticated identity).
//   - ErrNoEntitlement when identity is present but no active entitlement
//     exists (or the lookup failed, per the fail-closed contract).
//   - nil when access is granted.
func (s *EntitlementService) GuardProductAccess(ctx context.Context, userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if !s.HasActiveEntitlement(ctx, userID, productID) {
		return ErrNoEntitlement
	}
	return nil
}
