// Package policy – capability registry and the billing add-on adapter.
//
// The registry is global configuration data: an immutable lookup table from
// capability type to its access rule, constructed once at process start.
// Lookup misses are a distinct denial branch in the evaluator, never an
// exception and never a fall-through to allow.
package policy

import "strings"

// Capability types gated by the evaluator.
const (
	CapSuggestionSubmit  = "suggestion.submit"
	CapSuggestionEdit    = "suggestion.edit"
	CapFeatureBulkExport = "feature.bulk_export"
	CapFeatureAPIAccess  = "feature.api_access"
)

// Suggestion-domain add-on identifiers.
const (
	AddOnExtraSuggestionSlots = "extra_suggestion_slots"
	AddOnAPIAccess            = "api_access"
)

// Registry maps capability types to their immutable access rules.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry copies the given rule table into an immutable registry.
func NewRegistry(rules map[string]Rule) Registry {
	m := make(map[string]Rule, len(rules))
	for k, v := range rules {
		m[k] = v
	}
	return Registry{rules: m}
}

// Lookup returns the rule for a capability type and whether one is registered.
func (r Registry) Lookup(capability string) (Rule, bool) {
	rule, ok := r.rules[capability]
	return rule, ok
}

func plans(ps ...Plan) map[Plan]struct{} {
	m := make(map[Plan]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}

// DefaultRegistry returns the production rule table.
//
// Suggestion submission opens to everyone once the platform unlock threshold
// is reached; suggestion editing and the premium features stay plan-gated, and
// API access additionally requires its add-on.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Rule{
		CapSuggestionSubmit: {
			RequiresPlatformUnlock: true,
			AllowedPlans:           plans(PlanFree, PlanPremium, PlanPremiumMax),
		},
		CapSuggestionEdit: {
			RequiresPlatformUnlock: true,
			AllowedPlans:           plans(PlanPremium, PlanPremiumMax),
			RequiredAddOn:          AddOnExtraSuggestionSlots,
		},
		CapFeatureBulkExport: {
			AllowedPlans: plans(PlanPremium, PlanPremiumMax),
		},
		CapFeatureAPIAccess: {
			AllowedPlans:  plans(PlanPremiumMax),
			RequiredAddOn: AddOnAPIAccess,
		},
	})
}

// billingAddOnMap translates billing-domain add-on identifiers into
// suggestion-domain ones. Billing identifiers arrive from a separate domain
// and are never compared directly against rule requirements.
var billingAddOnMap = map[string]string{
	"addon_suggestion_slots": AddOnExtraSuggestionSlots,
	"addon_api_access":       AddOnAPIAccess,
}

// TranslateBillingAddOns maps billing add-on identifiers through the fixed
// adapter table. Unmapped identifiers are silently dropped: an unknown billing
// add-on grants nothing in this domain and is never inferred.
func TranslateBillingAddOns(billing []string) []string {
	if len(billing) == 0 {
		return nil
	}
	out := make([]string, 0, len(billing))
	for _, b := range billing {
		if s, ok := billingAddOnMap[b]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ParsePlan normalizes a stored plan string to a known tier, defaulting to
// free for anything unrecognized (fail toward the least privileged tier).
func ParsePlan(s string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanPremium:
		return PlanPremium
	case PlanPremiumMax:
		return PlanPremiumMax
	default:
		return PlanFree
	}
}
