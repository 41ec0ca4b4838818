package xccdfpolicy

// buildValueBindings implements the Value Binding Builder (C3): resolve
// every export on check into a concrete ValueBinding, in export
// declaration order. On the first export whose Value id is missing from
// the Benchmark, the whole build fails and the partial list is discarded
// (§4.3 step 5).
func buildValueBindings(bm *Benchmark, profile *Profile, check *Check) ([]ValueBinding, error) {
	bindings := make([]ValueBinding, 0, len(check.Exports))
	for _, exp := range check.Exports {
		value, ok := bm.Item(exp.ValueID)
		if !ok || value.Kind != ItemValue {
			return nil, errValueMissing(exp.ValueID)
		}

		selector := resolveSelector(profile, exp.ValueID)
		operator := resolveOperator(profile, exp.ValueID, value.Operator)

		instance, ok := findInstance(value, selector)
		if !ok {
			return nil, errValueInstanceMissing(exp.ValueID, selector)
		}

		binding := ValueBinding{
			Name:     exp.Name,
			Type:     value.ValueType,
			Value:    instance.Value,
			Operator: operator,
		}
		if sv := profile.lastSetValue(exp.ValueID); sv != nil {
			lit := sv.Literal
			binding.SetValue = &lit
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}

// resolveSelector implements §4.3 step 1: the last matching refine-value
// wins; "" (no refine-value) falls back to the default, selector-less
// instance.
func resolveSelector(profile *Profile, valueID string) string {
	rv := profile.lastRefineValue(valueID)
	if rv == nil || rv.Selector == nil {
		return ""
	}
	return *rv.Selector
}

// resolveOperator implements §4.3 step 2.
func resolveOperator(profile *Profile, valueID string, fallback ValueOperator) ValueOperator {
	rv := profile.lastRefineValue(valueID)
	if rv != nil && rv.Operator != nil {
		return *rv.Operator
	}
	return fallback
}

// findInstance implements §4.3 step 3: locate the instance matching
// selector exactly.
func findInstance(value *Item, selector string) (ValueInstance, bool) {
	for _, inst := range value.Instances {
		if inst.Selector == selector {
			return inst, true
		}
	}
	return ValueInstance{}, false
}
