package policy

import "testing"

func ruleAll() Rule {
	return Rule{
		RequiresPlatformUnlock: true,
		AllowedPlans:           plans(PlanPremium, PlanPremiumMax),
		RequiredAddOn:          AddOnExtraSuggestionSlots,
	}
}

func TestEvaluateRule_GateOrder(t *testing.T) {
	r := ruleAll()

	// Platform gate fires first even when plan and add-on would also fail.
	d := EvaluateRule(r, EvalContext{Plan: PlanFree, PlatformUnlocked: false})
	if d.Allowed || d.Reason != ReasonPlatformLocked {
		t.Fatalf("expected platform_locked, got %+v", d)
	}

	// With the platform unlocked, plan eligibility is next.
	d = EvaluateRule(r, EvalContext{Plan: PlanFree, PlatformUnlocked: true})
	if d.Allowed || d.Reason != ReasonPlanNotAllowed {
		t.Fatalf("expected plan_not_allowed, got %+v", d)
	}

	// Eligible plan but missing add-on.
	d = EvaluateRule(r, EvalContext{Plan: PlanPremium, PlatformUnlocked: true})
	if d.Allowed || d.Reason != ReasonAddOnRequired {
		t.Fatalf("expected addon_required, got %+v", d)
	}

	// Everything satisfied.
	d = EvaluateRule(r, EvalContext{
		Plan:             PlanPremium,
		AddOns:           []string{AddOnExtraSuggestionSlots},
		PlatformUnlocked: true,
	})
	if !d.Allowed || d.Reason != "" {
		t.Fatalf("expected allow, got %+v", d)
	}
}

func TestEvaluateRule_PlatformGateDominates(t *testing.T) {
	r := ruleAll()

	// No plan/add-on combination may overcome a locked platform.
	for _, plan := range []Plan{PlanFree, PlanPremium, PlanPremiumMax} {
		for _, addons := range [][]string{nil, {AddOnExtraSuggestionSlots}, {AddOnExtraSuggestionSlots, AddOnAPIAccess}} {
			d := EvaluateRule(r, EvalContext{Plan: plan, AddOns: addons, PlatformUnlocked: false})
			if d.Allowed {
				t.Fatalf("plan=%s addons=%v: platform gate must dominate", plan, addons)
			}
			if d.Reason != ReasonPlatformLocked {
				t.Fatalf("plan=%s addons=%v: reason = %q", plan, addons, d.Reason)
			}
		}
	}
}

func TestEvaluateRule_NoAddOnRequirement(t *testing.T) {
	r := Rule{AllowedPlans: plans(PlanFree, PlanPremium, PlanPremiumMax)}
	d := EvaluateRule(r, EvalContext{Plan: PlanFree})
	if !d.Allowed {
		t.Fatalf("expected allow without add-on requirement, got %+v", d)
	}
}

func TestEvaluate_UnknownCapabilityDenies(t *testing.T) {
	reg := DefaultRegistry()
	d := Evaluate(reg, "no.such.capability", EvalContext{
		Plan:             PlanPremiumMax,
		AddOns:           []string{AddOnExtraSuggestionSlots, AddOnAPIAccess},
		PlatformUnlocked: true,
	})
	if d.Allowed || d.Reason != ReasonUnknownCapability {
		t.Fatalf("unknown capability must deny with unknown_capability, got %+v", d)
	}
}

func TestEvaluate_DefaultRegistryCapabilities(t *testing.T) {
	reg := DefaultRegistry()

	for _, capability := range []string{CapSuggestionSubmit, CapSuggestionEdit, CapFeatureBulkExport, CapFeatureAPIAccess} {
		if _, okRule := reg.Lookup(capability); !okRule {
			t.Fatalf("registry missing %s", capability)
		}
	}

	// api_access requires its add-on regardless of plan.
	d := Evaluate(reg, CapFeatureAPIAccess, EvalContext{Plan: PlanPremiumMax, PlatformUnlocked: true})
	if d.Allowed || d.Reason != ReasonAddOnRequired {
		t.Fatalf("api_access without add-on should deny, got %+v", d)
	}
	d = Evaluate(reg, CapFeatureAPIAccess, EvalContext{
		Plan:             PlanPremiumMax,
		AddOns:           []string{AddOnAPIAccess},
		PlatformUnlocked: true,
	})
	if !d.Allowed {
		t.Fatalf("api_access with add-on should allow, got %+v", d)
	}
}

func TestRegistry_Immutable(t *testing.T) {
	src := map[string]Rule{"a": {AllowedPlans: plans(PlanFree)}}
	reg := NewRegistry(src)

	// Mutating the source map after construction must not affect lookups.
	src["a"] = Rule{RequiresPlatformUnlock: true}
	delete(src, "a")

	r, okRule := reg.Lookup("a")
	if !okRule || r.RequiresPlatformUnlock {
		t.Fatalf("registry shares state with its source map: %+v ok=%v", r, okRule)
	}
}

func TestPlatformUnlocked(t *testing.T) {
	cases := []struct {
		paid      int64
		threshold int
		want      bool
	}{
		{0, 1000, false},
		{999, 1000, false},
		{1000, 1000, true},
		{5000, 1000, true},
		{1, 0, true}, // zero threshold means always unlocked
	}
	for _, tc := range cases {
		if got := PlatformUnlocked(tc.paid, tc.threshold); got != tc.want {
			t.Fatalf("PlatformUnlocked(%d, %d) = %v, want %v", tc.paid, tc.threshold, got, tc.want)
		}
	}
}

func TestTranslateBillingAddOns(t *testing.T) {
	got := TranslateBillingAddOns([]string{
		"addon_suggestion_slots",
		"addon_unrelated_thing", // unmapped: grants nothing here
		"addon_api_access",
	})
	want := map[string]bool{
		AddOnExtraSuggestionSlots: true,
		AddOnAPIAccess:            true,
	}
	if len(got) != len(want) {
		t.Fatalf("translated = %v", got)
	}
	for _, a := range got {
		if !want[a] {
			t.Fatalf("unexpected translated add-on %q", a)
		}
	}
}

func TestTranslateBillingAddOns_Empty(t *testing.T) {
	if got := TranslateBillingAddOns(nil); len(got) != 0 {
		t.Fatalf("expected no add-ons, got %v", got)
	}
}

func TestParsePlan(t *testing.T) {
	cases := map[string]Plan{
		"free":        PlanFree,
		"premium":     PlanPremium,
		"PREMIUM":     PlanPremium,
		"premium_max": PlanPremiumMax,
		"":            PlanFree,
		"enterprise":  PlanFree, // unknown tiers never grant more than free
	}
	for in, want := range cases {
		if got := ParsePlan(in); got != want {
			t.Fatalf("ParsePlan(%q) = %q, want %q", in, got, want)
		}
	}
}
