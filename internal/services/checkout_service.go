// Package services – CheckoutService
//
// This file implements checkout initiation: validating the product, creating
// the pending Order row, and opening a payment gateway session the buyer is
// redirected to. Initiation honors an optional idempotency key so client
// retries resolve to the originally created order instead of opening a second
// payment attempt for the same purchase intent.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/domain"
	"github.com/veltix/go-access-backend/internal/gateway"
	"github.com/veltix/go-access-backend/internal/repo"
)

// Product is one purchasable catalog entry. The catalog is static
// configuration, keyed by product id.
type Product struct {
	// Amount is the price in minor currency units.
	Amount int64
	// Currency is the ISO 4217 code for Amount.
	Currency string
}

// Checkout is the outcome of an initiation: the order (new or replayed) and
// the gateway URL the buyer should be redirected to.
type Checkout struct {
	Order *domain.Order
	URL   string
	// Replayed is true when an idempotency key resolved to a previously
	// created order and no new payment attempt was opened.
	Replayed bool
}

// CheckoutService begins payment attempts against the gateway.
type CheckoutService struct {
	// DB is the database handle for order and idempotency persistence.
	DB *gorm.DB
	// Gateway opens provider checkout sessions.
	Gateway gateway.Client
	// Catalog maps product ids to their prices.
	Catalog map[string]Product
	// KeyTTL bounds how long an idempotency key replays.
	KeyTTL time.Duration
}

// Begin initiates a checkout for userID buying productID.
//
// Semantics:
//   - userID must be present (ErrUnauthenticated) and productID must be in
//     the catalog (ErrUnknownProduct).
//   - When idemKey is non-empty and a non-expired record exists for
//     (user, product, key), the original order is returned with Replayed=true
//     and no gateway call is made.
//   - Otherwise a pending Order is created, a gateway session opened, and the
//     session reference stored on the order. A gateway failure yields
//     ErrCheckoutUnavailable; the pending order row remains as the audit
//     record of the attempt.
func (s *CheckoutService) Begin(ctx context.Context, userID, productID, idemKey string) (*Checkout, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	p, ok := s.Catalog[productID]
	if !ok {
		return nil, ErrUnknownProduct
	}

	// Replay path: a stored key wins before any side effect.
	if idemKey != "" {
		if rec, err := repo.GetCheckoutKey(ctx, s.DB, userID, productID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			o, err := repo.GetOrder(ctx, s.DB, rec.OrderID)
			if err != nil {
				return nil, err
			}
			return &Checkout{Order: o, Replayed: true}, nil
		}
	}

	o, err := repo.CreateOrder(ctx, s.DB, userID, productID, p.Amount, p.Currency)
	if err != nil {
		return nil, err
	}

	sess, err := s.Gateway.CreateCheckout(ctx, o.ID, userID, productID, p.Amount, p.Currency)
	if err != nil {
		log.Error().
			Err(err).
			Str("order_id", o.ID).
			Str("product_id", productID).
			Msg("gateway checkout creation failed")
		return nil, ErrCheckoutUnavailable
	}
	if err := repo.SetOrderExternalRef(ctx, s.DB, o.ID, sess.ID); err != nil {
		return nil, err
	}
	o.ExternalRef = sess.ID

	if idemKey != "" {
		if _, err := repo.CreateCheckoutKey(ctx, s.DB, userID, productID, idemKey, o.ID, 201, s.KeyTTL); err != nil {
			// A concurrent retry beat us to the key; the stored order wins.
			if errors.Is(err, repo.ErrDuplicate) {
				if rec, lerr := repo.GetCheckoutKey(ctx, s.DB, userID, productID, idemKey, time.Now().UTC()); lerr == nil && rec != nil {
					if prev, gerr := repo.GetOrder(ctx, s.DB, rec.OrderID); gerr == nil {
						return &Checkout{Order: prev, Replayed: true}, nil
					}
				}
			} else {
				log.Warn().Err(err).Str("order_id", o.ID).Msg("checkout key store failed; retries will not replay")
			}
		}
	}

	return &Checkout{Order: o, URL: sess.URL}, nil
}
