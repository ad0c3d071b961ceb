// Package services – ReconcilerService
//
// This file implements the payment reconciliation engine: a periodic batch
// sweep that re-verifies stale pending orders against the payment gateway's
// authoritative record and repairs entitlement state when an asynchronous
// confirmation was missed, plus the race-safe point-in-time order status
// query that consults the same state.
//
// State machine per order: pending → paid (webhook fast path or this sweep),
// pending → failed|cancelled (external negative outcomes). paid, failed and
// cancelled are terminal; the engine never revisits them. The entitlement
// upsert keyed uniquely on order_id is the idempotency boundary: concurrent
// settlement by the sweep and the webhook path converges on one row.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/domain"
	"github.com/veltix/go-access-backend/internal/gateway"
	"github.com/veltix/go-access-backend/internal/repo"
)

// Order status answers returned by Status. "success" is asserted strictly on
// the existence of an active entitlement, never on the order row alone.
const (
	StatusSuccess   = "success"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	sweepScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_orders_scanned_total",
		Help: "Stale pending orders examined by reconciliation sweeps.",
	})
	sweepSettled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_orders_settled_total",
		Help: "Orders settled (paid + entitlement granted) by reconciliation sweeps.",
	})
	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_order_errors_total",
		Help: "Per-order verification or settlement failures during sweeps.",
	})
)

func init() {
	prometheus.MustRegister(sweepScanned, sweepSettled, sweepErrors)
}

// SweepResult summarizes one reconciliation run.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Errors  int `json:"errors"`
}

// ReconcilerService repairs missed payment confirmations and answers order
// status queries. It is the only writer of order/entitlement transitions in
// this core besides the webhook fast path, which funnels through the same
// Settle routine.
type ReconcilerService struct {
	// DB is the database handle for order/entitlement state.
	DB *gorm.DB
	// Gateway is the authoritative payment record.
	Gateway gateway.Client
	// StaleAfter is the minimum age before a pending order is re-verified;
	// younger confirmations may still be in flight and must not be preempted.
	StaleAfter time.Duration
	// Batch bounds the candidate set per sweep run.
	Batch int
}

// SweepOnce selects all pending orders older than StaleAfter (up to Batch)
// and re-verifies each against the gateway. Orders are processed
// independently: a failure verifying or settling one is counted and logged,
// never propagated as a fatal error for the batch. Running the sweep twice,
// or concurrently with the webhook path, cannot create duplicate
// entitlements.
func (s *ReconcilerService) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	cutoff := time.Now().UTC().Add(-s.StaleAfter)
	candidates, err := repo.ListStalePendingOrders(ctx, s.DB, cutoff, s.Batch)
	if err != nil {
		return res, err
	}

	for i := range candidates {
		o := &candidates[i]
		res.Scanned++
		sweepScanned.Inc()

		settled, err := s.verifyAndSettle(ctx, o)
		if err != nil {
			res.Errors++
			sweepErrors.Inc()
			log.Error().
				Err(err).
				Str("order_id", o.ID).
				Str("external_ref", o.ExternalRef).
				Msg("reconcile: order verification failed; will retry next sweep")
			continue
		}
		if settled {
			res.Settled++
			sweepSettled.Inc()
			log.Info().
				Str("order_id", o.ID).
				Str("user_id", o.UserID).
				Str("product_id", o.ProductID).
				Msg("reconcile: settled missed confirmation")
		}
	}
	return res, nil
}

// verifyAndSettle re-queries the gateway for one pending order and settles it
// when at least one payment attempt has captured. An order that never reached
// the gateway (no external reference) cannot have been paid and is left
// untouched, as is an order whose attempts are all still pending.
func (s *ReconcilerService) verifyAndSettle(ctx context.Context, o *domain.Order) (bool, error) {
	if o.ExternalRef == "" {
		return false, nil
	}
	payments, err := s.Gateway.ListPayments(ctx, o.ExternalRef)
	if err != nil {
		return false, err
	}
	if !gateway.AnyCaptured(payments) {
		return false, nil
	}
	if err := s.Settle(ctx, o.ID, o.UserID, o.ProductID); err != nil {
		return false, err
	}
	return true, nil
}

// Settle transitions an order to paid and grants its entitlement in one
// transaction, so the order can never be marked paid without its entitlement
// landing (or the whole settlement rolling back for the next sweep to retry).
//
// Settle is idempotent end to end: a second call finds zero rows to update
// (MarkOrderPaid is monotone) and the entitlement upsert is conflict-ignored
// on order_id, so replays and webhook/sweep races are harmless.
func (s *ReconcilerService) Settle(ctx context.Context, orderID, userID, productID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkOrderPaid(ctx, tx, orderID); err != nil {
			// Zero rows means the order already left pending; the upsert below
			// still runs so a paid order missing its entitlement gets repaired.
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}
		_, err := repo.UpsertEntitlementForOrder(ctx, tx, orderID, userID, productID)
		return err
	})
}

// SettleByOrderID is the webhook fast path entry: it loads the order and
// funnels into the same idempotent settlement as the sweep. Unknown order ids
// yield ErrOrderNotFound; terminal-negative orders are left untouched.
func (s *ReconcilerService) SettleByOrderID(ctx context.Context, orderID string) error {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if o.Status == domain.OrderStatusFailed || o.Status == domain.OrderStatusCancelled {
		log.Warn().
			Str("order_id", o.ID).
			Str("status", o.Status).
			Msg("settlement event for terminally failed order ignored")
		return nil
	}
	return s.Settle(ctx, o.ID, o.UserID, o.ProductID)
}

// Status answers a point-in-time "what is my order's status" query.
//
// Semantics:
//   - Ownership-scoped: an order belonging to another user is ErrOrderNotFound
//     regardless of its real status.
//   - Success requires proof of access: a paid order answers success only once
//     an active entitlement is visible, either the one tied to this order or
//     the earlier grant that settlement folded a repeat purchase into. An
//     order row that reads paid before any entitlement is visible answers
//     pending, not success.
//   - Terminal negative orders answer failed/cancelled.
//   - An internal error reading entitlement state answers failed (fail
//     closed), never a silent success.
//
// As a defensive measure, a pending order older than StaleAfter is verified
// against the gateway inline before answering, so a status query racing the
// scheduled sweep converges on the same answer. Verification errors leave the
// order pending for the next sweep.
func (s *ReconcilerService) Status(ctx context.Context, userID, orderID string) (string, error) {
	o, err := repo.GetOrderForUser(ctx, s.DB, orderID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_id", orderID).Msg("status query: order read failed")
		return StatusFailed, nil
	}

	switch o.Status {
	case domain.OrderStatusFailed:
		return StatusFailed, nil
	case domain.OrderStatusCancelled:
		return StatusCancelled, nil
	}

	if !o.Terminal() && time.Since(o.CreatedAt) >= s.StaleAfter {
		if _, err := s.verifyAndSettle(ctx, o); err != nil {
			log.Warn().Err(err).Str("order_id", o.ID).Msg("status query: verification against gateway failed")
		} else if fresh, err := repo.GetOrderForUser(ctx, s.DB, orderID, userID); err == nil {
			o = fresh
		}
	}

	if o.Status != domain.OrderStatusPaid {
		return StatusPending, nil
	}

	ent, err := repo.GetEntitlementByOrder(ctx, s.DB, o.ID)
	switch {
	case err == nil:
		if ent.Status == domain.EntitlementStatusActive {
			return StatusSuccess, nil
		}
		return StatusPending, nil
	case !errors.Is(err, repo.ErrNotFound):
		log.Error().Err(err).Str("order_id", o.ID).Msg("status query: entitlement read failed")
		return StatusFailed, nil
	}

	// No entitlement carries this order's id: settlement of a repeat purchase
	// attaches no second grant, so the pair-level read (the same one the
	// resolver trusts) decides.
	active, err := repo.HasActiveEntitlement(ctx, s.DB, o.UserID, o.ProductID)
	if err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("status query: entitlement read failed")
		return StatusFailed, nil
	}
	if active {
		return StatusSuccess, nil
	}
	return StatusPending, nil
}
