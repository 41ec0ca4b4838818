package xccdfpolicy

import "strings"

// TailoredRule is the materialized effective state of a Rule under a
// Profile: every refine-rule override already applied, selection already
// resolved, including deselection inherited from enclosing Groups (§4.4,
// §4.6). It mirrors exactly what the Rule Runner computes
// inline during Evaluate, exposed here as a read-only query for callers
// that want to report tailoring without a full run (e.g. a "describe"
// CLI subcommand).
type TailoredRule struct {
	RuleID   string
	Selected bool
	Weight   float64
	Severity string
	Role     string
	Selector string
}

// TailorRule resolves ruleID's effective tailoring under profile.
func TailorRule(bm *Benchmark, profile *Profile, ruleID string) (TailoredRule, error) {
	it, ok := bm.Item(ruleID)
	if !ok || it.Kind != ItemRule {
		return TailoredRule{}, errInternal("TailorRule: " + ruleID + " is not a known rule id")
	}
	selector := ""
	if rr := profile.lastRefineRule(ruleID); rr != nil && rr.Selector != nil {
		selector = *rr.Selector
	}
	selected := effectiveSelect(it, profile)
	for g := it.Parent; g != nil && selected; g = g.Parent {
		if g.Kind == ItemGroup && !effectiveSelect(g, profile) {
			selected = false
		}
	}
	return TailoredRule{
		RuleID:   ruleID,
		Selected: selected,
		Weight:   effectiveWeight(it, profile),
		Severity: effectiveSeverity(it, profile),
		Role:     effectiveRole(it, profile),
		Selector: selector,
	}, nil
}

// TailoredValue is the materialized effective state of a Value under a
// Profile: the selector and operator the Value Binding Builder (C3)
// would resolve, plus the bound instance's literal and any setvalue
// override (§4.3).
type TailoredValue struct {
	ValueID  string
	Selector string
	Operator ValueOperator
	Value    string
	SetValue *string
}

// TailorValue resolves valueID's effective tailoring under profile,
// independent of any particular Check export.
func TailorValue(bm *Benchmark, profile *Profile, valueID string) (TailoredValue, error) {
	it, ok := bm.Item(valueID)
	if !ok || it.Kind != ItemValue {
		return TailoredValue{}, errInternal("TailorValue: " + valueID + " is not a known value id")
	}
	selector := resolveSelector(profile, valueID)
	operator := resolveOperator(profile, valueID, it.Operator)
	instance, ok := findInstance(it, selector)
	if !ok {
		return TailoredValue{}, errValueInstanceMissing(valueID, selector)
	}
	tv := TailoredValue{ValueID: valueID, Selector: selector, Operator: operator, Value: instance.Value}
	if sv := profile.lastSetValue(valueID); sv != nil {
		lit := sv.Literal
		tv.SetValue = &lit
	}
	return tv, nil
}

// Substitute replaces "%{id}" markers in text per §4.10: each marker
// resolves, in order, to the Benchmark's plain-text for that id, else
// the tailored Value for that id: its setvalue literal when the Profile
// sets one, otherwise its selector-resolved instance value.
// A marker naming neither is left untouched rather than erroring —
// Substitute is a best-effort presentation helper, not a validation
// pass. Parsing XCCDF's own <sub> element is the caller's job (out of
// scope, §1); this only recognizes the "%{id}" marker grammar this
// package uses to stand in for XCCDF_SUBST_SUB(id).
func Substitute(bm *Benchmark, profile *Profile, text string) string {
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "%{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		marker := rest[start+2 : end]
		b.WriteString(resolveMarker(bm, profile, marker))
		rest = rest[end+1:]
	}
	return b.String()
}

func resolveMarker(bm *Benchmark, profile *Profile, marker string) string {
	if v, ok := bm.PlainTexts[marker]; ok {
		return v
	}
	tv, err := TailorValue(bm, profile, marker)
	if err != nil {
		return "%{" + marker + "}"
	}
	if tv.SetValue != nil {
		return *tv.SetValue
	}
	return tv.Value
}
