package xccdfpolicy_test

import (
	"context"
	"testing"

	xccdf "github.com/oscap-go/xccdfpolicy"
)

func TestEvaluateComplexCheckAndWithError(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "r1", DefaultSelected: true, Parent: root,
		Checks: []*xccdf.Check{
			{System: "urn:a", ContentRefs: []xccdf.ContentRef{{Href: "a.xml"}}},
			{System: "urn:b", ContentRefs: []xccdf.ContentRef{{Href: "b.xml"}}},
		},
		ComplexChecks: []*xccdf.ComplexCheck{{
			Operator: xccdf.OperatorAnd,
			Children: []xccdf.ComplexCheckChild{
				{Leaf: &xccdf.Check{System: "urn:a", ContentRefs: []xccdf.ContentRef{{Href: "a.xml"}}}},
				{Leaf: &xccdf.Check{System: "urn:b", ContentRefs: []xccdf.ContentRef{{Href: "b.xml"}}}},
			},
		}},
	}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	pm.RegisterEngine("urn:a", func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.Pass, nil
	}, nil, nil)
	pm.RegisterEngine("urn:b", func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.ResultError, nil
	}, nil, nil)

	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tr.Results) != 1 || tr.Results[0].Result != xccdf.ResultError {
		t.Fatalf("And(Pass, ResultError) should dominate to ResultError, got %+v", tr.Results)
	}
	if tr.Results[0].Check != nil {
		t.Fatalf("a complex-check result should not pin a single Check, got %+v", tr.Results[0].Check)
	}
}

func TestEvaluateMultiCheckFansOutPerName(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "r1", DefaultSelected: true, Parent: root,
		Checks: []*xccdf.Check{{
			System: "urn:multi", MultiCheck: true,
			ContentRefs: []xccdf.ContentRef{{Href: "defs.xml"}},
		}},
	}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	results := map[string]xccdf.ResultKind{"def1": xccdf.Pass, "def2": xccdf.Fail}
	pm.RegisterEngine("urn:multi",
		func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
			return results[name], nil
		},
		func(ctx context.Context, kind xccdf.QueryKind, arg string) ([]string, bool) {
			if kind == xccdf.QueryNamesForHref && arg == "defs.xml" {
				return []string{"def1", "def2"}, true
			}
			return nil, false
		},
		nil,
	)
	starts := 0
	pm.RegisterStartHook(func(ctx context.Context, arg any, hookCtx any) int {
		starts++
		return 0
	}, nil)

	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tr.Results) != 2 {
		t.Fatalf("expected one RuleResult per multi-check name, got %+v", tr.Results)
	}
	if tr.Results[0].Result != xccdf.Pass || tr.Results[1].Result != xccdf.Fail {
		t.Fatalf("unexpected per-name results: %+v", tr.Results)
	}
	if starts != 2 {
		t.Fatalf("expected the start hook to refire once per fanned-out name, got %d", starts)
	}
}

func TestEvaluateMissingValueExportYieldsUnknownAndContinues(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	bad := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "bad", DefaultSelected: true, Parent: root,
		Checks: []*xccdf.Check{{
			System:      "urn:a",
			ContentRefs: []xccdf.ContentRef{{Href: "a.xml"}},
			Exports:     []xccdf.Export{{ValueID: "does-not-exist", Name: "VAR"}},
		}},
	}
	good := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "good", DefaultSelected: true, Parent: root,
		Checks: []*xccdf.Check{{System: "urn:a", ContentRefs: []xccdf.ContentRef{{Href: "a.xml"}}}},
	}
	root.Children = []*xccdf.Item{bad, good}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	pm.RegisterEngine("urn:a", func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.Pass, nil
	}, nil, nil)

	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("a ValueMissing export must not abort Evaluate: %v", err)
	}
	if len(tr.Results) != 2 {
		t.Fatalf("expected the runner to continue past the bad rule, got %+v", tr.Results)
	}
	if tr.Results[0].Result != xccdf.Unknown || tr.Results[0].Message == "" {
		t.Fatalf("expected RuleResult(Unknown, message) for the missing export, got %+v", tr.Results[0])
	}
	if tr.Results[1].Result != xccdf.Pass {
		t.Fatalf("expected the rule after the bad one to still evaluate normally, got %+v", tr.Results[1])
	}
}

func TestEvaluateComplexCheckUnregisteredLeafFoldsToNotChecked(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "r1", DefaultSelected: true, Parent: root,
		ComplexChecks: []*xccdf.ComplexCheck{{
			Operator: xccdf.OperatorAnd,
			Children: []xccdf.ComplexCheckChild{
				{Leaf: &xccdf.Check{System: "urn:a", ContentRefs: []xccdf.ContentRef{{Href: "a.xml"}}}},
				{Leaf: &xccdf.Check{System: "urn:unregistered", ContentRefs: []xccdf.ContentRef{{Href: "b.xml"}}}},
			},
		}},
	}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	pm.RegisterEngine("urn:a", func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.Pass, nil
	}, nil, nil)

	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("an unregistered complex-check leaf must not abort Evaluate: %v", err)
	}
	if len(tr.Results) != 1 {
		t.Fatalf("expected one RuleResult, got %+v", tr.Results)
	}
	if tr.Results[0].Result != xccdf.NotChecked {
		t.Fatalf("And(Pass, <unregistered>) should fold with the leaf as NotChecked, got %+v", tr.Results[0])
	}
}

func TestEvaluateMultiCheckWithNamedRefsUsesSingleCheckSemantics(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{
		Kind: xccdf.ItemRule, ID: "r1", DefaultSelected: true, Parent: root,
		Checks: []*xccdf.Check{{
			System: "urn:multi", MultiCheck: true,
			ContentRefs: []xccdf.ContentRef{{Href: "defs.xml", Name: "def1"}},
		}},
	}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}

	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	queried := false
	pm.RegisterEngine("urn:multi",
		func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
			if name != "def1" {
				t.Fatalf("expected the single named content-ref's name to pass through unchanged, got %q", name)
			}
			return xccdf.Pass, nil
		},
		func(ctx context.Context, kind xccdf.QueryKind, arg string) ([]string, bool) {
			queried = true
			return []string{"def1", "def2"}, true
		},
		nil,
	)

	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if queried {
		t.Fatalf("a multi-check whose content-refs all carry explicit names must not query for fan-out names")
	}
	if len(tr.Results) != 1 || tr.Results[0].Result != xccdf.Pass {
		t.Fatalf("expected a single RuleResult under single-check semantics, got %+v", tr.Results)
	}
}

func TestEvaluateNoChecksIsNotChecked(t *testing.T) {
	root := &xccdf.Item{Kind: xccdf.ItemBenchmark}
	rule := &xccdf.Item{Kind: xccdf.ItemRule, ID: "r1", DefaultSelected: true, Parent: root}
	root.Children = []*xccdf.Item{rule}
	bm, err := xccdf.NewBenchmark(root, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}
	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	policy, _ := pm.Policy("")
	tr, err := policy.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(tr.Results) != 1 || tr.Results[0].Result != xccdf.NotChecked {
		t.Fatalf("a Rule with no checks should emit NotChecked, got %+v", tr.Results)
	}
}
