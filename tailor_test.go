package xccdfpolicy_test

import (
	"testing"

	xccdf "github.com/oscap-go/xccdfpolicy"
)

func TestTailorRuleAppliesRefineRuleOverrides(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{Kind: xccdf.ItemRule, ID: "r1", Weight: 1, Severity: "low", Parent: root}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}
	w := 5.0
	sev := "high"
	profile := &xccdf.Profile{RefineRules: []xccdf.RefineRule{{RuleID: "r1", Weight: &w, Severity: &sev}}}

	tailored, err := xccdf.TailorRule(bm, profile, "r1")
	if err != nil {
		t.Fatalf("TailorRule: %v", err)
	}
	if tailored.Weight != 5 || tailored.Severity != "high" {
		t.Fatalf("unexpected tailoring: %+v", tailored)
	}
}

func TestSubstitutePlainAndValueMarkers(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	value := &xccdf.Item{Kind: xccdf.ItemValue, ID: "minlen", Instances: []xccdf.ValueInstance{{Selector: "", Value: "14"}}, Parent: root}
	root.Children = []*xccdf.Item{value}
	bm, err := xccdf.NewBenchmark(root, "1.2", map[string]string{"org": "Example Corp"}, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	out := xccdf.Substitute(bm, nil, "Passwords at %{org} must be at least %{minlen} characters.")
	want := "Passwords at Example Corp must be at least 14 characters."
	if out != want {
		t.Fatalf("Substitute() = %q, want %q", out, want)
	}
}

func TestSubstituteUnknownMarkerLeftUntouched(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}
	out := xccdf.Substitute(bm, nil, "see %{nonexistent}")
	if out != "see %{nonexistent}" {
		t.Fatalf("Substitute() should leave unresolved markers untouched, got %q", out)
	}
}
