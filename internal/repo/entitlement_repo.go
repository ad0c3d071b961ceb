// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Entitlement
// model.
//
// The settlement write path here is the idempotency boundary for the whole
// payment flow: UpsertEntitlementForOrder relies on the unique index on
// entitlements.order_id and an explicit ON CONFLICT DO NOTHING clause, so the
// store (not in-process check-then-write) decides the winner when the webhook
// fast path races the reconciliation sweep on the same order. A pair-level
// check before the insert keeps repeat purchases of the same product from
// stacking active grants: one (user, product) pair holds at most one active
// entitlement at a time.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veltix/go-access-backend/internal/domain"
)

// HasActiveEntitlement reports whether an active entitlement row exists for
// (userID, productID). It performs exactly one point read; existence implies
// access. Blank-id short-circuiting is the caller's job (see the resolver
// service), keeping this function a pure storage lookup.
func HasActiveEntitlement(ctx context.Context, db *gorm.DB, userID, productID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Entitlement{}).
		Where("user_id = ? AND product_id = ? AND status = ?", userID, productID, domain.EntitlementStatusActive).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertEntitlementForOrder grants an active entitlement tied to orderID.
// Running it twice for the same order, or concurrently with another writer,
// yields exactly one row: the insert carries ON CONFLICT(order_id) DO NOTHING,
// so the losing write is silently ignored rather than failed.
//
// At most one entitlement is active per (user, product) at a time. When an
// earlier order already granted the pair, that grant is returned and no
// second row is inserted. Callers run this inside the settlement transaction,
// which serializes the pair-level check against concurrent settlers.
//
// The returned entitlement is the active row now backing (userID, productID),
// whichever order produced it.
func UpsertEntitlementForOrder(ctx context.Context, db *gorm.DB, orderID, userID, productID string) (*domain.Entitlement, error) {
	var prior domain.Entitlement
	err := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND status = ?", userID, productID, domain.EntitlementStatusActive).
		First(&prior).Error
	if err == nil {
		return &prior, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	e := &domain.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		OrderID:   orderID,
		Status:    domain.EntitlementStatusActive,
		GrantedAt: time.Now().UTC(),
	}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(e).Error
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}
	// Re-read so the caller always sees the winning row.
	return GetEntitlementByOrder(ctx, db, orderID)
}

// GetEntitlementByOrder fetches the entitlement tied to orderID, or
// ErrNotFound if settlement has not produced one yet.
func GetEntitlementByOrder(ctx context.Context, db *gorm.DB, orderID string) (*domain.Entitlement, error) {
	var e domain.Entitlement
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountPaidUsers returns the number of distinct users holding at least one
// active entitlement. This is the input to the platform-wide unlock threshold.
func CountPaidUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Entitlement{}).
		Where("status = ?", domain.EntitlementStatusActive).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey. glebarez/sqlite often reports them as
// plain-text errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
