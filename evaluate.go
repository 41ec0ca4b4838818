package xccdfpolicy

import "context"

// evalSimpleCheck implements the simple-check half of the Check Evaluator
// (C7, §4.7): build value bindings once, then try each content-ref in
// declaration order against every engine registered for the check's
// system, stopping at the first non-NotChecked result. forcedName
// overrides every content-ref's Name, used by multi-check fan-out to
// dispatch the same check once per query_fn-supplied name (§4.7, §4.2).
//
// It returns the resolved result plus a pinned clone of check recording
// which content-ref actually answered (§9 open question 2): the clone is
// the only Check instance ever attached to a RuleResult.
func evalSimpleCheck(ctx context.Context, p *Policy, ruleID string, check *Check, forcedName string) (ResultKind, *Check, error) {
	engines := p.Model.Registry.Lookup(check.System)
	if len(engines) == 0 {
		return 0, nil, errUnknownEngine(check.System)
	}

	bindings, err := buildValueBindings(p.Model.Benchmark, p.Profile, check)
	if err != nil {
		return 0, nil, err
	}

	refs := check.ContentRefs
	if len(refs) == 0 {
		refs = []ContentRef{{}}
	}

	res := NotChecked
	var pinned *Check
	for _, cr := range refs {
		name := cr.Name
		if forcedName != "" {
			name = forcedName
		}
		for _, e := range engines {
			imports := append([]string(nil), check.Imports...)
			r, err := e.eval(ctx, p, ruleID, name, cr.Href, bindings, &imports)
			if err != nil {
				return 0, nil, err
			}
			if r != NotChecked {
				res = r
				clone := check.clone()
				clone.Imports = imports
				clone.PinnedRef = &ContentRef{Href: cr.Href, Name: name}
				pinned = clone
				goto resolved
			}
		}
	}
resolved:
	if check.Negate {
		res = Negate(res)
	}
	return res, pinned, nil
}

// evalComplexCheck implements the complex-check half (C7, §4.7):
// recursively evaluate every child, fold left-to-right with the node's
// operator (Result Algebra, C1), then apply this node's own Negate flag.
// No single Check is pinned for a complex-check result — the RuleResult's
// Check stays nil, since no one content-ref answers for the whole tree.
// A leaf whose system has no registered engine folds in as NotChecked
// rather than aborting the whole tree — the Check Chooser's engine guard
// only covers top-level simple checks, so an unregistered leaf here is
// reachable on otherwise-valid input (§7).
func evalComplexCheck(ctx context.Context, p *Policy, ruleID string, cc *ComplexCheck) (ResultKind, error) {
	if len(cc.Children) == 0 {
		return NotChecked, nil
	}
	results := make([]ResultKind, 0, len(cc.Children))
	for _, child := range cc.Children {
		var r ResultKind
		var err error
		switch {
		case child.Complex != nil:
			r, err = evalComplexCheck(ctx, p, ruleID, child.Complex)
		case child.Leaf != nil:
			r, _, err = evalSimpleCheck(ctx, p, ruleID, child.Leaf, "")
			if isUnknownEngineError(err) {
				r, err = NotChecked, nil
			}
		}
		if err != nil {
			return 0, err
		}
		results = append(results, r)
	}
	res := reduce(cc.Operator, results)
	if cc.Negate {
		res = Negate(res)
	}
	return res, nil
}

// expandMultiCheckNames asks every engine registered for check.System to
// answer QueryNamesForHref for href, returning the first ok=true answer
// (§4.2, §4.7: multi-check fan-out). ok is false when no registered
// engine supports querying, or none recognizes href.
func expandMultiCheckNames(ctx context.Context, reg *EngineRegistry, check *Check, href string) ([]string, bool) {
	for _, e := range reg.Lookup(check.System) {
		if e.query == nil {
			continue
		}
		if names, ok := e.query(ctx, QueryNamesForHref, href); ok {
			return names, true
		}
	}
	return nil, false
}
