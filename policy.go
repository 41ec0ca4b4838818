package xccdfpolicy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// FileRef is one (system, href) pair referenced by a Benchmark, as
// returned by PolicyModel.FilesReferenced (§4.10, SUPPLEMENTED FEATURES).
type FileRef struct {
	System string
	Href   string
}

// ProgressFunc is invoked once per RuleResult added to the TestResult
// during Evaluate, after that RuleResult's output hook has run
// (SUPPLEMENTED FEATURES: "Progress callback"). It is also invoked for a
// RuleResult whose output hook returned non-zero; Evaluate stops after
// that call.
type ProgressFunc func(RuleResult)

// cpeSession is an opaque engine-owned handle cached by href (§3, §4.5).
// destroy is the engine-supplied destructor invoked on PolicyModel.Close.
type cpeSession struct {
	handle  any
	destroy func(any)
}

// PolicyModel owns the Benchmark, the list of Policies (one per Profile
// plus a default), the engine registry, external CPE content, and the
// CPE/OVAL session cache (C10, §3 "Lifecycle & ownership").
type PolicyModel struct {
	Benchmark *Benchmark
	Registry  *EngineRegistry
	Logger    *slog.Logger

	policies     []*Policy
	policiesByID map[string]*Policy // "" and "default" both resolve to the no-profile Policy

	externalCPEDictionaries   []*CPEDictionary
	externalCPELanguageModels []*CPELanguageModel

	contentLoader ContentLoader
	sessions      map[string]cpeSession // prefixed href -> session
}

// NewPolicyModel constructs a PolicyModel from a Benchmark: it resolves
// the Benchmark's internal references and constructs one default Policy
// (no Profile) plus one Policy per Profile (§4.10). logger may be nil.
func NewPolicyModel(bm *Benchmark, logger *slog.Logger) (*PolicyModel, error) {
	if bm == nil {
		return nil, errInternal("NewPolicyModel requires a non-nil Benchmark")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pm := &PolicyModel{
		Benchmark:    bm,
		Registry:     NewEngineRegistry(),
		Logger:       logger,
		policiesByID: make(map[string]*Policy),
		sessions:     make(map[string]cpeSession),
	}

	def := newPolicy(pm, nil)
	pm.policies = append(pm.policies, def)
	pm.policiesByID[""] = def
	pm.policiesByID["default"] = def

	for _, id := range bm.ProfileIDs() {
		p := newPolicy(pm, bm.profiles[id])
		pm.policies = append(pm.policies, p)
		pm.policiesByID[id] = p
	}
	return pm, nil
}

// RegisterEngine registers a checking-engine callback (§4.2).
func (pm *PolicyModel) RegisterEngine(systemURI string, eval EvalFunc, query QueryFunc, userCtx any) {
	pm.Registry.RegisterEngine(systemURI, eval, query, userCtx)
}

// RegisterStartHook installs the start hook (§4.2, §4.8).
func (pm *PolicyModel) RegisterStartHook(fn HookFunc, ctx any) {
	pm.Registry.RegisterStartHook(fn, ctx)
}

// RegisterOutputHook installs the output hook (§4.2, §4.8).
func (pm *PolicyModel) RegisterOutputHook(fn HookFunc, ctx any) {
	pm.Registry.RegisterOutputHook(fn, ctx)
}

// Policy locates a Policy by Profile id. "" and "default" both resolve to
// the no-profile default Policy.
func (pm *PolicyModel) Policy(profileID string) (*Policy, bool) {
	p, ok := pm.policiesByID[profileID]
	return p, ok
}

// Policies returns every Policy, default first then in Profile
// declaration order.
func (pm *PolicyModel) Policies() []*Policy {
	return append([]*Policy(nil), pm.policies...)
}

// AddCPEDictionary registers an external CPE dictionary, consulted after
// the Benchmark's embedded dictionary (§4.5).
func (pm *PolicyModel) AddCPEDictionary(d *CPEDictionary) {
	pm.externalCPEDictionaries = append(pm.externalCPEDictionaries, d)
}

// AddCPELanguageModel registers an external CPE language model (§4.5).
func (pm *PolicyModel) AddCPELanguageModel(m *CPELanguageModel) {
	pm.externalCPELanguageModels = append(pm.externalCPELanguageModels, m)
}

// FilesReferenced returns the (system, href) pairs referenced by Item
// platform references and by Rules' simple Checks, deduplicated and in
// first-occurrence, pre-order (§4.10). Content-refs of complex-check
// leaves are not scanned.
func (pm *PolicyModel) FilesReferenced() []FileRef {
	seen := make(map[FileRef]bool)
	var out []FileRef
	add := func(system, href string) {
		if href == "" {
			return
		}
		ref := FileRef{System: system, Href: href}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	walkPreOrder(pm.Benchmark.Root, func(it *Item) {
		for _, ref := range it.Platforms {
			if href, system, ok := platformCheckHref(pm, ref); ok {
				add(system, href)
			}
		}
		for _, c := range it.Checks {
			for _, cr := range c.ContentRefs {
				add(c.System, cr.Href)
			}
		}
	})
	return out
}

// Close tears down the PolicyModel, invoking every cached session's
// engine-supplied destructor (§3).
func (pm *PolicyModel) Close() error {
	for href, s := range pm.sessions {
		if s.destroy != nil {
			s.destroy(s.handle)
		}
		delete(pm.sessions, href)
	}
	return nil
}

// testResultID computes the TestResult id per §6: schema version >= 1.2
// uses the "xccdf_org.open-scap_testresult_" prefix, else "OSCAP-Test-".
// Version comparison uses semver so "1.10" correctly outranks "1.2"
// (naive string comparison would not).
func testResultID(schemaVersion, profileID string) string {
	suffix := profileID
	if suffix == "" {
		suffix = "default-profile"
	}
	if atLeast12(schemaVersion) {
		return "xccdf_org.open-scap_testresult_" + suffix
	}
	return "OSCAP-Test-" + suffix
}

func atLeast12(schemaVersion string) bool {
	v, err := semver.NewVersion(normalizeSchemaVersion(schemaVersion))
	if err != nil {
		// An unparsable version is treated as pre-1.2, matching the
		// conservative legacy id format rather than guessing.
		return false
	}
	threshold := semver.MustParse("1.2.0")
	return v.Compare(threshold) >= 0
}

// normalizeSchemaVersion pads bare "major.minor" XCCDF schema versions
// (e.g. "1.2") into a semver-parsable "major.minor.patch" string.
func normalizeSchemaVersion(v string) string {
	if v == "" {
		return "0.0.0"
	}
	dots := 0
	for _, r := range v {
		if r == '.' {
			dots++
		}
	}
	switch dots {
	case 0:
		return v + ".0.0"
	case 1:
		return v + ".0"
	default:
		return v
	}
}

// Policy is a Profile applied to a Benchmark (§3). Construct via
// NewPolicyModel; it owns its selection state and the TestResults it has
// produced.
type Policy struct {
	Model   *PolicyModel
	Profile *Profile // nil for the default Policy

	selects     map[string]bool
	selectOrder []string // Rule ids in Benchmark pre-order

	results []*TestResult
}

func newPolicy(pm *PolicyModel, profile *Profile) *Policy {
	p := &Policy{Model: pm, Profile: profile, selects: make(map[string]bool)}
	resolveSelection(pm.Benchmark.Root, profile, true, p)
	return p
}

// Selected reports the effective selection for a rule id, resolved at
// construction time by the Selection Resolver (C4).
func (p *Policy) Selected(ruleID string) bool {
	return p.selects[ruleID]
}

// Results returns the TestResults this Policy has produced, in
// production order.
func (p *Policy) Results() []*TestResult {
	return append([]*TestResult(nil), p.results...)
}

// profileID returns "" for the default Policy, else the Profile's id.
func (p *Policy) profileID() string {
	if p.Profile == nil {
		return ""
	}
	return p.Profile.ID
}

// Evaluate runs this Policy over every Rule in Benchmark pre-order and
// produces a TestResult (§2, §4.8, §5); unselected and not-applicable
// Rules yield NotSelected and NotApplicable RuleResults. progress
// may be nil. A HookAbort with Code == -1 is fatal: the partial
// TestResult is discarded and the error is returned; any other HookAbort
// returns the partial TestResult alongside the error (§5).
func (p *Policy) Evaluate(ctx context.Context, progress ProgressFunc) (*TestResult, error) {
	start := time.Now().UTC()
	tr := &TestResult{
		ID:    testResultID(p.Model.Benchmark.SchemaVersion, p.profileID()),
		RunID: uuid.NewString(),
		Start: start,
	}

	applicCache := make(map[string]bool)

	for _, ruleID := range p.selectOrder {
		rule, ok := p.Model.Benchmark.Item(ruleID)
		if !ok {
			continue
		}
		results, err := runRule(ctx, p, rule, applicCache)
		for _, rr := range results {
			tr.Results = append(tr.Results, rr)
			if progress != nil {
				progress(rr)
			}
		}
		if err != nil {
			var abort *HookAbort
			if errors.As(err, &abort) {
				tr.End = time.Now().UTC()
				if abort.Fatal() {
					return nil, err
				}
				p.results = append(p.results, tr)
				return tr, err
			}
			return nil, err
		}
	}

	tr.End = time.Now().UTC()
	p.results = append(p.results, tr)
	return tr, nil
}
