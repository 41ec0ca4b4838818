package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oscap-go/xccdfpolicy"
	"github.com/oscap-go/xccdfpolicy/internal/metrics"
)

// fixtureRule is one flat Rule entry in a YAML evaluation fixture. The
// CLI only needs a flat Benchmark (no Groups/Values/tailoring) to drive
// the core meaningfully without a real XML/OVAL toolchain, so this is
// the one concrete shape "xccdfpolicy eval" understands.
type fixtureRule struct {
	ID       string  `yaml:"id"`
	Weight   float64 `yaml:"weight"`
	Selected bool    `yaml:"selected"`
	System   string  `yaml:"system"`
	Href     string  `yaml:"href"`
	Result   string  `yaml:"result"`
}

// fixtureFile is the top-level YAML document "eval" consumes. The fixture
// defines no Profiles, so Profile only resolves when it is "" or
// "default" (the default Policy); any other id is reported as unknown.
type fixtureFile struct {
	SchemaVersion string        `yaml:"schema_version"`
	Profile       string        `yaml:"profile"`
	Rules         []fixtureRule `yaml:"rules"`
}

const mockSystem = "urn:xccdf:fixture:mock"

var (
	evalFixturePath string
	evalScoring     string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a YAML Benchmark fixture against a Profile",
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalFixturePath, "fixture", "", "path to a YAML evaluation fixture (required)")
	evalCmd.Flags().StringVar(&evalScoring, "scoring", "", "scoring system URI (default: config's default_scoring_system)")
	_ = evalCmd.MarkFlagRequired("fixture")
	rootCmd.AddCommand(evalCmd)
}

func runEval(_ *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(evalFixturePath)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixtureFile
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}

	bm, canned, err := buildFixtureBenchmark(fx)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	pm, err := xccdfpolicy.NewPolicyModel(bm, logger)
	if err != nil {
		return err
	}
	pm.RegisterEngine(mockSystem, mockEvalFunc(canned), nil, nil)

	policy, ok := pm.Policy(fx.Profile)
	if !ok {
		return fmt.Errorf("no such profile %q", fx.Profile)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewRunMetrics("xccdfpolicy", registry)

	tr, err := policy.Evaluate(context.Background(), func(rr xccdfpolicy.RuleResult) {
		m.RecordResult(rr.Result.String())
		fmt.Printf("%-40s %s\n", rr.RuleID, rr.Result)
	})
	if tr == nil {
		return err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "xccdfpolicy: evaluation ended early:", err)
	}

	scoringURI := evalScoring
	if scoringURI == "" {
		scoringURI = cfg.DefaultScoringSystem
	}
	score, serr := xccdfpolicy.ComputeScore(bm, tr, scoringURI)
	if serr != nil {
		fmt.Fprintln(os.Stderr, "xccdfpolicy: scoring:", serr)
		return err
	}
	tr.Scores = append(tr.Scores, score)
	m.RecordScore(score.System, score.Score)
	fmt.Printf("\nscore (%s): %.2f / %.2f\n", score.System, score.Score, score.MaxScore)
	return err
}

func buildFixtureBenchmark(fx fixtureFile) (*xccdfpolicy.Benchmark, map[string]xccdfpolicy.ResultKind, error) {
	root := &xccdfpolicy.Item{Kind: xccdfpolicy.ItemBenchmark}
	canned := make(map[string]xccdfpolicy.ResultKind, len(fx.Rules))

	for _, fr := range fx.Rules {
		system := fr.System
		if system == "" {
			system = mockSystem
		}
		kind, err := parseResultKind(fr.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: %w", fr.ID, err)
		}
		canned[fr.ID] = kind

		rule := &xccdfpolicy.Item{
			Kind:            xccdfpolicy.ItemRule,
			ID:              fr.ID,
			Weight:          fr.Weight,
			DefaultSelected: fr.Selected,
			Parent:          root,
			Checks: []*xccdfpolicy.Check{{
				System:      system,
				ContentRefs: []xccdfpolicy.ContentRef{{Href: fr.Href}},
			}},
		}
		root.Children = append(root.Children, rule)
	}

	return xccdfpolicy.NewBenchmark(root, fx.SchemaVersion, nil, nil)
}

func mockEvalFunc(canned map[string]xccdfpolicy.ResultKind) xccdfpolicy.EvalFunc {
	return func(_ context.Context, _ *xccdfpolicy.Policy, ruleID, _, _ string, _ []xccdfpolicy.ValueBinding, _ *[]string) (xccdfpolicy.ResultKind, error) {
		if r, ok := canned[ruleID]; ok {
			return r, nil
		}
		return xccdfpolicy.NotChecked, nil
	}
}

func parseResultKind(s string) (xccdfpolicy.ResultKind, error) {
	switch strings.ToLower(s) {
	case "pass":
		return xccdfpolicy.Pass, nil
	case "fail":
		return xccdfpolicy.Fail, nil
	case "error":
		return xccdfpolicy.ResultError, nil
	case "unknown":
		return xccdfpolicy.Unknown, nil
	case "notapplicable":
		return xccdfpolicy.NotApplicable, nil
	case "notchecked":
		return xccdfpolicy.NotChecked, nil
	case "notselected":
		return xccdfpolicy.NotSelected, nil
	case "informational":
		return xccdfpolicy.Informational, nil
	case "fixed":
		return xccdfpolicy.Fixed, nil
	default:
		return 0, fmt.Errorf("unrecognized result kind %q", s)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
