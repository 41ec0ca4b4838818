package xccdfpolicy

import (
	"context"
	"errors"
	"time"
)

// valueErrorMessage reports ok=true and the human-readable message when
// err is (or wraps) a §7 ValueMissing/ValueInstanceMissing error — the
// two error kinds the Rule Runner must turn into RuleResult(Unknown,
// message) rather than abort the whole Policy.Evaluate (§7).
func valueErrorMessage(err error) (string, bool) {
	var verr *valueResolutionError
	if errors.As(err, &verr) {
		return verr.Error(), true
	}
	return "", false
}

// runRule implements the Rule Runner (C8, §4.8): the per-Rule state
// machine driving the start hook, selection, applicability, check
// choice, check evaluation (including multi-check fan-out), RuleResult
// assembly, and the output hook. It returns every RuleResult produced
// before a HookAbort, if any, alongside that error — the caller
// (Policy.Evaluate) decides whether to keep or discard the partial
// TestResult based on HookAbort.Fatal().
func runRule(ctx context.Context, p *Policy, rule *Item, applicCache map[string]bool) ([]RuleResult, error) {
	if code, ok := p.Model.Registry.fireStart(ctx, rule); ok && code != 0 {
		return nil, errHookAbort(code)
	}

	if !p.Selected(rule.ID) {
		rr := baseRuleResult(rule, p.Profile, NotSelected)
		return emit(ctx, p, rr)
	}

	ok, err := applicable(ctx, p.Model, p, rule, applicCache)
	if err != nil {
		return nil, err
	}
	if !ok {
		rr := baseRuleResult(rule, p.Profile, NotApplicable)
		return emit(ctx, p, rr)
	}

	chosen, ok := chooseCheck(p.Model.Registry, p.Profile, rule)
	if !ok {
		rr := baseRuleResult(rule, p.Profile, NotChecked)
		return emit(ctx, p, rr)
	}

	if chosen.complex != nil {
		res, err := evalComplexCheck(ctx, p, rule.ID, chosen.complex)
		if err != nil {
			if msg, ok := valueErrorMessage(err); ok {
				rr := baseRuleResult(rule, p.Profile, Unknown)
				rr.Message = msg
				return emit(ctx, p, rr)
			}
			return nil, err
		}
		rr := baseRuleResult(rule, p.Profile, res)
		return emit(ctx, p, rr)
	}

	check := chosen.simple
	if check.MultiCheck && hasNullNameRef(check) {
		return runMultiCheck(ctx, p, rule, check)
	}

	res, pinned, err := evalSimpleCheck(ctx, p, rule.ID, check, "")
	if err != nil {
		if msg, ok := valueErrorMessage(err); ok {
			rr := baseRuleResult(rule, p.Profile, Unknown)
			rr.Message = msg
			return emit(ctx, p, rr)
		}
		return nil, err
	}
	rr := baseRuleResult(rule, p.Profile, res)
	rr.Check = pinned
	return emit(ctx, p, rr)
}

// hasNullNameRef reports whether check has at least one content-ref with
// an unset Name — §4.7 gates multi-check fan-out on "multicheck=true and
// a content-ref has a null name"; a multicheck check whose content-refs
// all carry explicit names is evaluated with single-check semantics. A
// check with no content-refs at all counts as having one unnamed ref, the
// same stand-in runMultiCheck and evalSimpleCheck dispatch.
func hasNullNameRef(check *Check) bool {
	if len(check.ContentRefs) == 0 {
		return true
	}
	for _, cr := range check.ContentRefs {
		if cr.Name == "" {
			return true
		}
	}
	return false
}

// runMultiCheck fans a multicheck out into one RuleResult per name
// query_fn reports for the check's content (§4.2, §4.7). The start hook
// refires before every name after the first, since each name is, from
// the hook's perspective, a fresh Rule instantiation (§4.8).
func runMultiCheck(ctx context.Context, p *Policy, rule *Item, check *Check) ([]RuleResult, error) {
	refs := check.ContentRefs
	if len(refs) == 0 {
		refs = []ContentRef{{}}
	}

	var names []string
	queried := false
	for _, cr := range refs {
		if ns, ok := expandMultiCheckNames(ctx, p.Model.Registry, check, cr.Href); ok {
			names = ns
			queried = true
			break
		}
	}

	// query_fn answered but found nothing to expand: one Unknown
	// RuleResult, not a fallback to single-check semantics (§4.7).
	if queried && len(names) == 0 {
		rr := baseRuleResult(rule, p.Profile, Unknown)
		rr.Message = "No definitions found for @multi-check."
		return emit(ctx, p, rr)
	}

	// No engine answered the query at all: fall back to single-check
	// semantics (§4.7: "If query returns null, fall back to single-check
	// semantics").
	if !queried {
		res, pinned, err := evalSimpleCheck(ctx, p, rule.ID, check, "")
		if err != nil {
			if msg, ok := valueErrorMessage(err); ok {
				rr := baseRuleResult(rule, p.Profile, Unknown)
				rr.Message = msg
				return emit(ctx, p, rr)
			}
			return nil, err
		}
		rr := baseRuleResult(rule, p.Profile, res)
		rr.Check = pinned
		rr.Message = "Checking engine does not support multi-check"
		return emit(ctx, p, rr)
	}

	var out []RuleResult
	for i, name := range names {
		if i > 0 {
			if code, ok := p.Model.Registry.fireStart(ctx, rule); ok && code != 0 {
				return out, errHookAbort(code)
			}
		}
		res, pinned, err := evalSimpleCheck(ctx, p, rule.ID, check, name)
		if err != nil {
			if msg, ok := valueErrorMessage(err); ok {
				rr := baseRuleResult(rule, p.Profile, Unknown)
				rr.Message = msg
				emitted, emitErr := emit(ctx, p, rr)
				out = append(out, emitted...)
				if emitErr != nil {
					return out, emitErr
				}
				continue
			}
			return out, err
		}
		rr := baseRuleResult(rule, p.Profile, res)
		rr.Check = pinned
		emitted, err := emit(ctx, p, rr)
		out = append(out, emitted...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// baseRuleResult assembles a RuleResult's tailoring-sensitive fields
// (weight, severity, role per the last-matching refine-rule, §4.4) ahead
// of check evaluation.
func baseRuleResult(rule *Item, profile *Profile, result ResultKind) RuleResult {
	rr := RuleResult{
		RuleID:    rule.ID,
		Result:    result,
		Weight:    effectiveWeight(rule, profile),
		Version:   rule.Version,
		Severity:  effectiveSeverity(rule, profile),
		Role:      effectiveRole(rule, profile),
		Timestamp: time.Now().UTC(),
		FixText:   rule.FixText,
		Idents:    append([]Ident(nil), rule.Idents...),
	}
	return rr
}

func effectiveWeight(rule *Item, profile *Profile) float64 {
	if rr := profile.lastRefineRule(rule.ID); rr != nil && rr.Weight != nil {
		return *rr.Weight
	}
	return rule.Weight
}

func effectiveSeverity(rule *Item, profile *Profile) string {
	if rr := profile.lastRefineRule(rule.ID); rr != nil && rr.Severity != nil {
		return *rr.Severity
	}
	return rule.Severity
}

func effectiveRole(rule *Item, profile *Profile) string {
	if rr := profile.lastRefineRule(rule.ID); rr != nil && rr.Role != nil {
		return *rr.Role
	}
	return rule.Role
}

// emit fires the output hook for rr and returns it wrapped in a
// single-element slice, matching the multi-result shape runRule's
// callers expect. A non-zero hook code becomes a HookAbort; rr itself is
// still returned since it was already produced (§5: a non-fatal abort
// does not take back RuleResults already emitted, the aborting one
// included).
func emit(ctx context.Context, p *Policy, rr RuleResult) ([]RuleResult, error) {
	if code, ok := p.Model.Registry.fireOutput(ctx, &rr); ok && code != 0 {
		return []RuleResult{rr}, errHookAbort(code)
	}
	return []RuleResult{rr}, nil
}
