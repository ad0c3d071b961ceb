package services

import (
	"context"
	"errors"
	"testing"

	"github.com/veltix/go-access-backend/internal/repo"
)

func TestHasActiveEntitlement_BlankIDsShortCircuit(t *testing.T) {
	// No DB handle at all: blank ids must return false without ever touching
	// storage (a nil DB would panic if they did).
	svc := &EntitlementService{}
	ctx := context.Background()

	if svc.HasActiveEntitlement(ctx, "", "prod_a") {
		t.Fatalf("blank user must deny")
	}
	if svc.HasActiveEntitlement(ctx, "u1", "") {
		t.Fatalf("blank product must deny")
	}
	if svc.HasActiveEntitlement(ctx, "   ", "prod_a") {
		t.Fatalf("whitespace user must deny")
	}
}

func TestHasActiveEntitlement_Lookup(t *testing.T) {
	db := newTestDB(t)
	svc := &EntitlementService{DB: db}
	ctx := context.Background()

	if svc.HasActiveEntitlement(ctx, "u1", "prod_a") {
		t.Fatalf("empty store must deny")
	}

	o, err := repo.CreateOrder(ctx, db, "u1", "prod_a", 100, "usd")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := repo.UpsertEntitlementForOrder(ctx, db, o.ID, "u1", "prod_a"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if !svc.HasActiveEntitlement(ctx, "u1", "prod_a") {
		t.Fatalf("active entitlement must allow")
	}
}

func TestGuardProductAccess_DistinguishesIdentityFromEntitlement(t *testing.T) {
	db := newTestDB(t)
	svc := &EntitlementService{DB: db}
	ctx := context.Background()

	// No identity: unauthorized, not forbidden.
	if err := svc.GuardProductAccess(ctx, "", "prod_a"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("blank user err = %v, want ErrUnauthenticated", err)
	}

	// Identity without entitlement: forbidden.
	if err := svc.GuardProductAccess(ctx, "u1", "prod_a"); !errors.Is(err, ErrNoEntitlement) {
		t.Fatalf("no entitlement err = %v, want ErrNoEntitlement", err)
	}

	o, _ := repo.CreateOrder(ctx, db, "u1", "prod_a", 100, "usd")
	if _, err := repo.UpsertEntitlementForOrder(ctx, db, o.ID, "u1", "prod_a"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.GuardProductAccess(ctx, "u1", "prod_a"); err != nil {
		t.Fatalf("granted access err = %v, want nil", err)
	}
}
