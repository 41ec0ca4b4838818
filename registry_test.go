package xccdfpolicy_test

import (
	"context"
	"fmt"
	"testing"

	xccdf "github.com/oscap-go/xccdfpolicy"
)

func TestEngineRegistryLookupOrder(t *testing.T) {
	reg := xccdf.NewEngineRegistry()
	if reg.HasEngine("urn:test:oval") {
		t.Fatalf("expected no engine registered yet")
	}

	noop := func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.NotChecked, nil
	}
	reg.RegisterEngine("urn:test:oval", noop, nil, nil)
	reg.RegisterEngine("urn:test:oval", noop, nil, nil)

	if reg.Count("urn:test:oval") != 2 {
		t.Fatalf("expected 2 registered engines, got %d", reg.Count("urn:test:oval"))
	}
	if len(reg.Lookup("urn:test:oval")) != 2 {
		t.Fatalf("Lookup should return every registered engine in order")
	}
	if uris := reg.SystemURIs(); len(uris) != 1 || uris[0] != "urn:test:oval" {
		t.Fatalf("unexpected SystemURIs: %v", uris)
	}
}

func TestEngineRegistryHooks(t *testing.T) {
	var startArg, outputArg any

	bm, err := xccdf.NewBenchmark(&xccdf.Item{Kind: xccdf.ItemBenchmark}, "1.2", nil, nil)
	if err != nil {
		t.Fatalf("NewBenchmark: %v", err)
	}
	pm, err := xccdf.NewPolicyModel(bm, nil)
	if err != nil {
		t.Fatalf("NewPolicyModel: %v", err)
	}
	pm.RegisterStartHook(func(ctx context.Context, arg any, hookCtx any) int {
		startArg = arg
		return 0
	}, nil)
	pm.RegisterOutputHook(func(ctx context.Context, arg any, hookCtx any) int {
		outputArg = arg
		return 0
	}, nil)

	policy, _ := pm.Policy("")
	if _, err := policy.Evaluate(context.Background(), nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if startArg != nil {
		t.Fatalf("start hook should not fire for a Benchmark with no Rules")
	}
	if outputArg != nil {
		t.Fatalf("output hook should not fire for a Benchmark with no Rules")
	}
}

// ExampleEngineRegistry_RegisterEngine demonstrates registering a
// checking engine and dispatching a Rule against it.
func ExampleEngineRegistry_RegisterEngine() {
	reg := xccdf.NewEngineRegistry()
	reg.RegisterEngine("urn:example:oval", func(ctx context.Context, p *xccdf.Policy, ruleID, name, href string, bindings []xccdf.ValueBinding, imports *[]string) (xccdf.ResultKind, error) {
		return xccdf.Fail, nil
	}, nil, nil)
	fmt.Println(reg.HasEngine("urn:example:oval"), reg.Count("urn:example:oval"))
	// Output: true 1
}
