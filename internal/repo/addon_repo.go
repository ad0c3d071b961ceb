// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AddOnGrant
// model.
//
// Error semantics:
//   - Granting the same (user_id, addon) twice is idempotent: the existing row
//     wins via ON CONFLICT DO NOTHING on the unique index, mirroring the
//     entitlement settlement path.
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veltix/go-access-backend/internal/domain"
)

// GrantAddOn records an active add-on grant for userID. grantedBy must be
// "system" or "admin" (enforced by DB constraint); reason is a free-text audit
// note. A repeated grant for the same (user, add-on) is a no-op and the
// original row (including its reason and grantor) is preserved.
func GrantAddOn(ctx context.Context, db *gorm.DB, userID, addOn, grantedBy, reason string) (*domain.AddOnGrant, error) {
	g := &domain.AddOnGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		AddOn:     addOn,
		Status:    domain.EntitlementStatusActive,
		GrantedBy: grantedBy,
		Reason:    reason,
		GrantedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "addon"}},
			DoNothing: true,
		}).
		Create(g).Error
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}

	var out domain.AddOnGrant
	if err := db.WithContext(ctx).
		Where("user_id = ? AND addon = ?", userID, addOn).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActiveAddOns returns the active add-on identifiers granted to userID.
// It returns an empty slice when the user has none. On DB error, it returns
// the error.
func ListActiveAddOns(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.AddOnGrant{}).
		Where("user_id = ? AND status = ?", userID, domain.EntitlementStatusActive).
		Pluck("addon", &out).Error
	return out, err
}
