// Package services – AccessService and the platform unlock snapshot.
//
// AccessService assembles the evaluation context for the pure policy
// evaluator: it loads the user's billing add-on grants, translates them into
// suggestion-domain identifiers, reads the cached platform unlock flag, and
// asks the evaluator for a decision. The evaluator itself never touches
// storage; all derivation happens here.
package services

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/policy"
	"github.com/veltix/go-access-backend/internal/repo"
)

// policyDecisions counts evaluator outcomes by capability and reason
// ("allowed" for grants). Cardinality is bounded by the static registry and
// the fixed reason set.
var policyDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "policy_decisions_total",
		Help: "Capability policy decisions by capability and outcome reason.",
	},
	[]string{"capability", "reason"},
)

func init() {
	prometheus.MustRegister(policyDecisions)
}

// UnlockState holds the platform-wide unlock flag, recomputed on a schedule
// from the paid-user count so per-request evaluation stays a pure read.
type UnlockState struct {
	// Threshold is the paid-user count at which the platform unlocks.
	Threshold int

	unlocked atomic.Bool
}

// Refresh recounts paid users and updates the snapshot. On a counting error
// the previous snapshot is retained (a transient DB failure must not flip the
// platform back to locked, nor unlock it early) and the error is returned for
// logging by the caller.
func (u *UnlockState) Refresh(ctx context.Context, db *gorm.DB) error {
	n, err := repo.CountPaidUsers(ctx, db)
	if err != nil {
		return err
	}
	u.unlocked.Store(policy.PlatformUnlocked(n, u.Threshold))
	return nil
}

// Unlocked returns the current snapshot. The zero value reports false, so a
// process that has never successfully refreshed fails closed.
func (u *UnlockState) Unlocked() bool { return u.unlocked.Load() }

// AccessService decides capability access (suggestion slots, premium
// features) for authenticated users.
type AccessService struct {
	// DB is the database handle used to load add-on grants.
	DB *gorm.DB
	// Registry is the immutable capability rule table.
	Registry policy.Registry
	// Unlock is the shared platform unlock snapshot.
	Unlock *UnlockState
}

// CheckCapability evaluates whether the user may exercise the capability.
// plan is the caller-supplied tier (carried in the auth token, not stored
// here); unrecognized values normalize to the free tier.
//
// Backing-store failures while loading add-on grants are logged and treated
// as "no add-ons": the evaluation proceeds and can only become stricter,
// never looser, which preserves the fail-closed contract.
func (s *AccessService) CheckCapability(ctx context.Context, userID, plan, capability string) policy.Decision {
	var addOns []string
	if userID != "" {
		billing, err := repo.ListActiveAddOns(ctx, s.DB, userID)
		if err != nil {
			log.Error().
				Err(err).
				Str("user_id", userID).
				Str("capability", capability).
				Msg("addon grant lookup failed; evaluating without add-ons")
		} else {
			addOns = policy.TranslateBillingAddOns(billing)
		}
	}

	d := policy.Evaluate(s.Registry, capability, policy.EvalContext{
		Plan:             policy.ParsePlan(plan),
		AddOns:           addOns,
		PlatformUnlocked: s.Unlock.Unlocked(),
	})

	outcome := d.Reason
	if d.Allowed {
		outcome = "allowed"
	}
	policyDecisions.WithLabelValues(capability, outcome).Inc()
	return d
}

// GrantAddOn records an idempotent add-on grant (ops/support action). The
// stored identifier is the billing-domain one; translation to the suggestion
// domain happens at evaluation time.
func (s *AccessService) GrantAddOn(ctx context.Context, userID, addOn, grantedBy, reason string) error {
	if userID == "" || addOn == "" {
		return ErrGrantInvalid
	}
	switch grantedBy {
	case "system", "admin":
	default:
		return ErrGrantInvalid
	}
	_, err := repo.GrantAddOn(ctx, s.DB, userID, addOn, grantedBy, reason)
	return err
}
