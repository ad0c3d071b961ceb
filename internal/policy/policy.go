// Package policy implements the capability policy evaluator: the single
// decision point for "may this user use this gated capability". It composes
// three independent gates in a fixed order (platform-wide unlock, plan tier
// eligibility, then add-on requirement) into one allow/deny decision carrying
// a stable reason code.
//
// The package is deliberately pure: it holds no storage handles and performs
// no I/O. Callers assemble an EvalContext (user plan, translated add-ons, the
// current platform unlock snapshot) and receive a Decision. This keeps every
// gate unit-testable in isolation and the ordering explicit rather than buried
// in nested branching.
//
// Fail-closed invariants:
//   - A capability with no registered rule denies with ReasonUnknownCapability;
//     absence of configuration is never implicit permission.
//   - The platform gate dominates: when a rule requires the platform unlock and
//     it has not been reached, the decision is a denial regardless of plan or
//     add-ons.
package policy

// Plan identifies a subscription tier.
type Plan string

// Known plan tiers.
const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanPremiumMax Plan = "premium_max"
)

// Deny reason codes. These are wire-stable: handlers return them verbatim.
const (
	ReasonPlatformLocked    = "platform_locked"
	ReasonPlanNotAllowed    = "plan_not_allowed"
	ReasonAddOnRequired     = "addon_required"
	ReasonUnknownCapability = "unknown_capability"
)

// Rule is the static access configuration for one capability type. Rules are
// immutable registry data constructed once at process start, never runtime
// state.
type Rule struct {
	// RequiresPlatformUnlock gates the capability behind the platform-wide
	// paid-user threshold.
	RequiresPlatformUnlock bool
	// AllowedPlans is the set of plan tiers that may use the capability.
	AllowedPlans map[Plan]struct{}
	// RequiredAddOn, when non-empty, names an add-on the user must hold in
	// addition to an eligible plan.
	RequiredAddOn string
}

// EvalContext carries the per-request facts the evaluator needs. All
// derivation (loading grants, counting paid users) happens before evaluation.
type EvalContext struct {
	Plan Plan
	// AddOns are suggestion-domain identifiers, already translated from
	// billing identifiers via TranslateBillingAddOns.
	AddOns []string
	// PlatformUnlocked is the externally derived threshold snapshot.
	PlatformUnlocked bool
}

// Decision is the tagged result of an evaluation: either an allow, or a deny
// with exactly one reason code.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r string) Decision { return Decision{Allowed: false, Reason: r} }

// gate is one independent predicate in the evaluation chain. It returns a
// non-empty reason to deny, or "" to pass to the next gate.
type gate func(Rule, EvalContext) string

// gates is the fixed evaluation order. Do not reorder: the platform gate must
// dominate plan eligibility, which must dominate the add-on requirement.
var gates = []gate{
	platformGate,
	planEligibility,
	addOnRequirement,
}

func platformGate(r Rule, c EvalContext) string {
	if r.RequiresPlatformUnlock && !c.PlatformUnlocked {
		return ReasonPlatformLocked
	}
	return ""
}

func planEligibility(r Rule, c EvalContext) string {
	if _, ok := r.AllowedPlans[c.Plan]; !ok {
		return ReasonPlanNotAllowed
	}
	return ""
}

func addOnRequirement(r Rule, c EvalContext) string {
	if r.RequiredAddOn == "" {
		return ""
	}
	for _, a := range c.AddOns {
		if a == r.RequiredAddOn {
			return ""
		}
	}
	return ReasonAddOnRequired
}

// EvaluateRule runs the fixed gate chain for a known rule. Each gate
// short-circuits: the first denial wins and later gates are not consulted.
func EvaluateRule(r Rule, c EvalContext) Decision {
	for _, g := range gates {
		if reason := g(r, c); reason != "" {
			return deny(reason)
		}
	}
	return allow()
}

// Evaluate resolves capability against the registry and evaluates its rule.
// A capability with no registered rule denies with ReasonUnknownCapability.
func Evaluate(reg Registry, capability string, c EvalContext) Decision {
	r, ok := reg.Lookup(capability)
	if !ok {
		return deny(ReasonUnknownCapability)
	}
	return EvaluateRule(r, c)
}

// PlatformUnlocked derives the platform-wide unlock from the paid-user count
// and the configured threshold. It is a pure function of one integer and one
// constant; callers recompute it periodically, never per-request from raw
// counts.
func PlatformUnlocked(paidUsers int64, threshold int) bool {
	return paidUsers >= int64(threshold)
}
