// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an order is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Orders are an append-only financial record: there is deliberately no delete
// helper in this file, and MarkOrderPaid refuses to touch anything that is not
// currently pending so terminal states stay terminal.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateOrder inserts a new pending Order for userID and productID with the
// given minor-unit amount. The order ID is a randomly generated UUID (string),
// and CreatedAt is set to UTC.
//
// On success, it returns the persisted Order. On failure, it returns a DB error.
func CreateOrder(ctx context.Context, db *gorm.DB, userID, productID string, amount int64, currency string) (*domain.Order, error) {
	o := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Status:    domain.OrderStatusPending,
		Amount:    amount,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// SetOrderExternalRef records the payment gateway's reference for an order
// once the checkout session has been created. Returns ErrNotFound when the
// order does not exist.
func SetOrderExternalRef(ctx context.Context, db *gorm.DB, id, externalRef string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("external_ref", externalRef)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetOrder fetches a single order by its ID, or ErrNotFound if missing.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderForUser fetches a single order by ID scoped to its owner. A row that
// exists but belongs to a different user is reported as ErrNotFound, never as
// a permission error, so callers cannot probe for foreign order IDs.
func GetOrderForUser(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListStalePendingOrders returns up to limit orders that are still pending and
// were created before the cutoff, oldest first. These are the reconciliation
// sweep's candidates; younger pending orders are excluded because their
// confirmation may still be in flight.
func ListStalePendingOrders(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.OrderStatusPending, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkOrderPaid transitions an order from pending to paid. The WHERE clause
// includes the current status so the transition is monotone: a second call, or
// a call racing another writer, affects zero rows and returns ErrNotFound
// instead of rewriting a terminal state.
func MarkOrderPaid(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusPending).
		Update("status", domain.OrderStatusPaid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountOrders returns the total number of orders owned by userID.
// On DB error, it returns the error.
func CountOrders(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListOrdersPage returns a paginated slice of orders for userID, ordered by
// creation time descending. Use CountOrders to obtain the total for pagination
// metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListOrdersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
