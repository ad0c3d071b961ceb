// Package services defines the business logic for entitlements, capability
// access, checkout, and payment reconciliation. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrUnauthenticated indicates that no authenticated identity accompanied
	// the request. Handlers map it to 401, distinct from an entitlement denial.
	ErrUnauthenticated = errors.New("no authenticated identity")

	// ErrNoEntitlement indicates that an authenticated user holds no active
	// entitlement for the requested product. Handlers map it to 403.
	ErrNoEntitlement = errors.New("no active entitlement")

	// ErrUnknownProduct is returned when a checkout names a product that is
	// not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrOrderNotFound indicates that the requested order does not exist or is
	// not owned by the requesting user. Ownership mismatches deliberately look
	// identical to missing rows.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCheckoutUnavailable is returned when the payment gateway refuses or
	// fails to open a checkout session.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")

	// ErrGrantInvalid is returned when an add-on grant request is missing its
	// user, add-on identifier, or carries an unknown grantor.
	ErrGrantInvalid = errors.New("invalid add-on grant")
)
