package xccdfpolicy

// chosenCheck is what the Check Chooser (C6) hands back to the Check
// Evaluator: either a complex-check tree to fold, or a single simple
// check already matched to a registered engine.
type chosenCheck struct {
	complex *ComplexCheck
	simple  *Check
}

// chooseCheck implements §4.6's four-step algorithm. It returns ok=false
// when the Rule has no checks at all, or when no candidate simple Check's
// system has a registered engine; the Rule Runner treats both as
// NotChecked (§4.8).
func chooseCheck(reg *EngineRegistry, profile *Profile, rule *Item) (chosenCheck, bool) {
	// Step 1: any complex-check present makes every simple Check
	// invisible (§4.6 step 1).
	if len(rule.ComplexChecks) > 0 {
		return chosenCheck{complex: rule.ComplexChecks[0]}, true
	}
	if len(rule.Checks) == 0 {
		return chosenCheck{}, false
	}

	selector := ""
	if rr := profile.lastRefineRule(rule.ID); rr != nil && rr.Selector != nil {
		selector = *rr.Selector
	}

	// Step 2/3: among simple Checks, prefer one whose Selector matches
	// the profile's refine-rule selector; fall back to a selector-less
	// Check if none match (§4.6 steps 2-3).
	candidates := rule.Checks
	if selector != "" {
		var matched []*Check
		for _, c := range candidates {
			if c.Selector == selector {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			for _, c := range candidates {
				if c.Selector == "" {
					matched = append(matched, c)
				}
			}
		}
		candidates = matched
	} else {
		var matched []*Check
		for _, c := range candidates {
			if c.Selector == "" {
				matched = append(matched, c)
			}
		}
		candidates = matched
	}

	// Step 4: among the remaining candidates, pick the one whose system
	// has a registered engine; when several qualify the last one in
	// Rule declaration order wins (§4.6 step 4). Engine registration
	// order plays no part here: HasEngine only reports whether any
	// engine is registered for the system.
	var chosen *Check
	for _, c := range candidates {
		if reg.HasEngine(c.System) {
			chosen = c
		}
	}
	if chosen == nil {
		return chosenCheck{}, false
	}
	return chosenCheck{simple: chosen}, true
}
