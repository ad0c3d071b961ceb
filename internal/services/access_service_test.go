package services

import (
	"context"
	"errors"
	"testing"

	"github.com/veltix/go-access-backend/internal/policy"
	"github.com/veltix/go-access-backend/internal/repo"
)

func newAccessService(t *testing.T, threshold int) *AccessService {
	t.Helper()
	return &AccessService{
		DB:       newTestDB(t),
		Registry: policy.DefaultRegistry(),
		Unlock:   &UnlockState{Threshold: threshold},
	}
}

func TestUnlockState_FailsClosedUntilRefreshed(t *testing.T) {
	u := &UnlockState{Threshold: 1}
	if u.Unlocked() {
		t.Fatalf("zero-value unlock state must report locked")
	}
}

func TestUnlockState_RefreshCrossesThreshold(t *testing.T) {
	db := newTestDB(t)
	u := &UnlockState{Threshold: 2}
	ctx := context.Background()

	if err := u.Refresh(ctx, db); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if u.Unlocked() {
		t.Fatalf("0 paid users < threshold 2, must stay locked")
	}

	for _, user := range []string{"u1", "u2"} {
		o, _ := repo.CreateOrder(ctx, db, user, "prod_a", 100, "usd")
		if _, err := repo.UpsertEntitlementForOrder(ctx, db, o.ID, user, "prod_a"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := u.Refresh(ctx, db); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !u.Unlocked() {
		t.Fatalf("2 paid users >= threshold 2, must unlock")
	}
}

func TestCheckCapability_PlatformGate(t *testing.T) {
	svc := newAccessService(t, 1000)
	ctx := context.Background()

	d := svc.CheckCapability(ctx, "u1", "premium_max", policy.CapSuggestionSubmit)
	if d.Allowed || d.Reason != policy.ReasonPlatformLocked {
		t.Fatalf("locked platform: %+v", d)
	}

	// Flip the snapshot by meeting the threshold.
	svc.Unlock.Threshold = 0
	if err := svc.Unlock.Refresh(ctx, svc.DB); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	d = svc.CheckCapability(ctx, "u1", "free", policy.CapSuggestionSubmit)
	if !d.Allowed {
		t.Fatalf("unlocked platform, free plan allowed for submission: %+v", d)
	}
}

func TestCheckCapability_TranslatesStoredBillingAddOns(t *testing.T) {
	svc := newAccessService(t, 0)
	ctx := context.Background()
	if err := svc.Unlock.Refresh(ctx, svc.DB); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// premium_max without the api_access add-on: denied on the add-on gate.
	d := svc.CheckCapability(ctx, "u1", "premium_max", policy.CapFeatureAPIAccess)
	if d.Allowed || d.Reason != policy.ReasonAddOnRequired {
		t.Fatalf("missing add-on: %+v", d)
	}

	// Grant the billing-domain identifier; evaluation translates it.
	if err := svc.GrantAddOn(ctx, "u1", "addon_api_access", "admin", "test"); err != nil {
		t.Fatalf("GrantAddOn: %v", err)
	}
	d = svc.CheckCapability(ctx, "u1", "premium_max", policy.CapFeatureAPIAccess)
	if !d.Allowed {
		t.Fatalf("granted add-on should allow: %+v", d)
	}

	// An unmapped billing add-on grants nothing.
	if err := svc.GrantAddOn(ctx, "u2", "addon_mystery", "system", "test"); err != nil {
		t.Fatalf("GrantAddOn: %v", err)
	}
	d = svc.CheckCapability(ctx, "u2", "premium_max", policy.CapFeatureAPIAccess)
	if d.Allowed {
		t.Fatalf("unmapped billing add-on must not grant: %+v", d)
	}
}

func TestCheckCapability_UnknownCapability(t *testing.T) {
	svc := newAccessService(t, 0)
	d := svc.CheckCapability(context.Background(), "u1", "premium_max", "feature.time_travel")
	if d.Allowed || d.Reason != policy.ReasonUnknownCapability {
		t.Fatalf("unknown capability: %+v", d)
	}
}

func TestGrantAddOn_Validation(t *testing.T) {
	svc := newAccessService(t, 0)
	ctx := context.Background()

	cases := []struct{ user, addon, by string }{
		{"", "addon_api_access", "admin"},
		{"u1", "", "admin"},
		{"u1", "addon_api_access", "support"},
		{"u1", "addon_api_access", ""},
	}
	for _, tc := range cases {
		if err := svc.GrantAddOn(ctx, tc.user, tc.addon, tc.by, "r"); !errors.Is(err, ErrGrantInvalid) {
			t.Fatalf("GrantAddOn(%q,%q,%q) err = %v, want ErrGrantInvalid", tc.user, tc.addon, tc.by, err)
		}
	}

	if err := svc.GrantAddOn(ctx, "u1", "addon_api_access", "system", "auto"); err != nil {
		t.Fatalf("valid grant: %v", err)
	}
}
