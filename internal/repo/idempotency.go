// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the CheckoutKey
// model used to implement safe-retry semantics for checkout initiation.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/domain"
)

// ErrDuplicate indicates that a checkout key record already exists for the
// given (user_id, product_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetCheckoutKey returns a non-expired record or ErrNotFound.
func GetCheckoutKey(ctx context.Context, db *gorm.DB, userID, productID, key string, now time.Time) (*domain.CheckoutKey, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.CheckoutKey
	err := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND key = ? AND expires_at > ?", userID, productID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateCheckoutKey inserts a record and returns ErrDuplicate on unique violation.
func CreateCheckoutKey(ctx context.Context, db *gorm.DB, userID, productID, key, orderID string, status int, ttl time.Duration) (*domain.CheckoutKey, error) {
	now := time.Now().UTC()
	rec := &domain.CheckoutKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Key:       key,
		OrderID:   orderID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
