package xccdfpolicy

// resolveSelection implements the Selection Resolver (C4): a depth-first
// walk of the Benchmark tree carrying an inherited parentSelected flag.
// It records one selection entry per Rule found (and, incidentally,
// walks every other item kind too, but only Rules are recorded — §4.4:
// "Value / other: ignored here").
//
// It also appends every visited Rule's id to p.selectOrder in Benchmark
// pre-order, which Policy.Evaluate iterates (§5: "RuleResults in a
// TestResult appear in Benchmark pre-order of their Rules").
func resolveSelection(it *Item, profile *Profile, parentSelected bool, p *Policy) {
	switch it.Kind {
	case ItemRule:
		selected := parentSelected && effectiveSelect(it, profile)
		p.selects[it.ID] = selected
		p.selectOrder = append(p.selectOrder, it.ID)
		return

	case ItemGroup:
		childSelected := parentSelected
		if parentSelected {
			childSelected = effectiveSelect(it, profile)
		}
		for _, c := range it.Children {
			resolveSelection(c, profile, childSelected, p)
		}

	case ItemBenchmark:
		for _, c := range it.Children {
			resolveSelection(c, profile, parentSelected, p)
		}

	case ItemValue:
		// Values carry no selection state.
	}
}

// effectiveSelect resolves "profile_select_if_present else
// item.default_selected" for a Rule or Group (§4.4).
func effectiveSelect(it *Item, profile *Profile) bool {
	if v, ok := profile.selectFor(it.ID); ok {
		return v
	}
	return it.DefaultSelected
}
