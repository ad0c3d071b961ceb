// Package domain defines the persistence models for orders, entitlements, and
// add-on grants. These types are mapped with GORM and form the core data layer
// of the access-control plane.
package domain

import (
	"time"
)

// Order statuses. Transitions are monotone forward only: a pending order may
// become paid, failed, or cancelled; no status ever moves back to pending.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Entitlement and add-on grant statuses.
const (
	EntitlementStatusActive  = "active"
	EntitlementStatusRevoked = "revoked"
)

// Order represents one payment attempt for a product. Orders are an
// append-only financial record: rows are created at checkout initiation and
// mutated only by the payment-confirmation path or the reconciliation sweep,
// never deleted.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ExternalRef: the payment gateway's reference for this order; used to
//     re-query the gateway's authoritative payment list during reconciliation.
//   - UserID / ProductID: the purchasing identity and the purchased product.
//   - Status: pending | paid | failed | cancelled (enforced by DB constraint).
//   - Amount: integer minor-unit currency (e.g. cents); never a float.
//   - Currency: ISO 4217 code for Amount.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Order struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ExternalRef string    `json:"external_ref" gorm:"type:varchar(128);index"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_user_orders"`
	ProductID   string    `json:"product_id"   gorm:"type:varchar(64);not null;index"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;index;check:status IN ('pending','paid','failed','cancelled')"`
	Amount      int64     `json:"amount"       gorm:"not null"`
	Currency    string    `json:"currency"     gorm:"type:varchar(8);not null;default:'EUR'"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Terminal reports whether the order is in a final state that the
// reconciliation sweep must never revisit.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusFailed || o.Status == OrderStatusCancelled
}

// Entitlement represents granted access for a user to a product, tied to the
// settling order. The unique index on OrderID is the idempotency boundary for
// settlement: granting twice for the same order is a conflict-ignored no-op,
// not a duplicate row, even under concurrent writers (webhook vs sweep).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID / ProductID: the granted identity and product (indexed together
//     for the resolver's point read).
//   - OrderID: the settled order; unique, so one entitlement per order.
//   - Status: active | revoked.
//   - GrantedAt: settlement time (UTC).
type Entitlement struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_product,priority:1"`
	ProductID string    `json:"product_id" gorm:"type:varchar(64);not null;index:idx_user_product,priority:2"`
	OrderID   string    `json:"order_id"   gorm:"type:char(36);not null;uniqueIndex:ux_entitlement_order"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;index;check:status IN ('active','revoked')"`
	GrantedAt time.Time `json:"granted_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Order is the settling payment attempt.
	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Entitlement.
func (Entitlement) TableName() string { return "entitlements" }

// AddOnGrant represents a manually or system-granted capability extension
// outside the base plan tier. Granting the same (user, add-on) twice is
// idempotent: the existing row wins, enforced by the unique index.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID / AddOn: the grantee and the suggestion-domain add-on identifier.
//   - Status: active | revoked.
//   - GrantedBy: "system" or "admin".
//   - Reason: free-text audit note recorded at grant time.
//   - GrantedAt: grant time (UTC).
type AddOnGrant struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_user_addon,priority:1"`
	AddOn     string    `json:"addon"      gorm:"column:addon;type:varchar(64);not null;uniqueIndex:ux_user_addon,priority:2"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('active','revoked')"`
	GrantedBy string    `json:"granted_by" gorm:"type:varchar(16);not null;check:granted_by IN ('system','admin')"`
	Reason    string    `json:"reason"     gorm:"type:varchar(255)"`
	GrantedAt time.Time `json:"granted_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for AddOnGrant.
func (AddOnGrant) TableName() string { return "addon_grants" }
