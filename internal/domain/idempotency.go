// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// CheckoutKey records a previously processed checkout initiation, keyed by
// (user_id, product_id, key). It enables safe retries of POST /checkout:
// a replayed initiation resolves to the originally created order instead of
// opening a second payment attempt for the same purchase intent.
type CheckoutKey struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_product_key,priority:1"`
	ProductID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_product_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_product_key,priority:3"`
	OrderID   string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (CheckoutKey) TableName() string { return "checkout_keys" }
