package xccdfpolicy

import "testing"

func benchmarkWithValue(t *testing.T, instances []ValueInstance) *Benchmark {
	t.Helper()
	root := &Item{Kind: ItemBenchmark}
	value := &Item{Kind: ItemValue, ID: "val1", ValueType: ValueString, Operator: OpEquals, Instances: instances, Parent: root}
	root.Children = []*Item{value}
	bm, err := NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}
	return bm
}

func TestBuildValueBindingsDefaultInstance(t *testing.T) {
	bm := benchmarkWithValue(t, []ValueInstance{{Selector: "", Value: "default-val"}})
	check := &Check{Exports: []Export{{ValueID: "val1", Name: "VAR"}}}

	bindings, err := buildValueBindings(bm, nil, check)
	if err != nil {
		t.Fatalf("buildValueBindings: %v", err)
	}
	if len(bindings) != 1 || bindings[0].Value != "default-val" {
		t.Fatalf("unexpected bindings: %+v", bindings)
	}
}

func TestBuildValueBindingsSelectorFromRefineValue(t *testing.T) {
	bm := benchmarkWithValue(t, []ValueInstance{
		{Selector: "", Value: "default-val"},
		{Selector: "strict", Value: "strict-val"},
	})
	check := &Check{Exports: []Export{{ValueID: "val1", Name: "VAR"}}}
	profile := &Profile{RefineValues: []RefineValue{{ValueID: "val1", Selector: strPtr("strict")}}}

	bindings, err := buildValueBindings(bm, profile, check)
	if err != nil {
		t.Fatalf("buildValueBindings: %v", err)
	}
	if bindings[0].Value != "strict-val" {
		t.Fatalf("expected the refine-value selector to pick the strict instance, got %+v", bindings[0])
	}
}

func TestBuildValueBindingsMissingValueErrors(t *testing.T) {
	bm := benchmarkWithValue(t, nil)
	check := &Check{Exports: []Export{{ValueID: "does-not-exist", Name: "VAR"}}}

	if _, err := buildValueBindings(bm, nil, check); err == nil {
		t.Fatalf("expected an error for a missing Value id")
	}
}

func TestBuildValueBindingsMissingInstanceErrors(t *testing.T) {
	bm := benchmarkWithValue(t, []ValueInstance{{Selector: "only-this", Value: "v"}})
	check := &Check{Exports: []Export{{ValueID: "val1", Name: "VAR"}}}

	if _, err := buildValueBindings(bm, nil, check); err == nil {
		t.Fatalf("expected an error when no instance matches the resolved selector")
	}
}

func TestBuildValueBindingsSetValueOverride(t *testing.T) {
	bm := benchmarkWithValue(t, []ValueInstance{{Selector: "", Value: "default-val"}})
	check := &Check{Exports: []Export{{ValueID: "val1", Name: "VAR"}}}
	profile := &Profile{SetValues: []SetValue{{ValueID: "val1", Literal: "forced"}}}

	bindings, err := buildValueBindings(bm, profile, check)
	if err != nil {
		t.Fatalf("buildValueBindings: %v", err)
	}
	if bindings[0].SetValue == nil || *bindings[0].SetValue != "forced" {
		t.Fatalf("expected SetValue override, got %+v", bindings[0])
	}
}
