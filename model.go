// Package xccdfpolicy implements the policy-evaluation core of an XCCDF
// compliance engine: profile resolution, selection propagation, value
// binding, check dispatch, complex-check reduction, CPE applicability,
// rule-result assembly, and score computation. Parsing the Benchmark XML,
// parsing CPE content, and evaluating OVAL definitions are the caller's
// job; this package only consumes already-parsed data and a narrow
// checking-engine callback contract (see EngineRegistry).
package xccdfpolicy

import (
	"fmt"
	"time"
)

// ItemKind tags the variant held by an Item. Go has no sum types, so the
// Benchmark tree is a single tagged struct rather than a Rule/Group/Value
// class hierarchy (per the "do not use inheritance" design note).
type ItemKind int

const (
	ItemBenchmark ItemKind = iota
	ItemGroup
	ItemRule
	ItemValue
)

func (k ItemKind) String() string {
	switch k {
	case ItemBenchmark:
		return "benchmark"
	case ItemGroup:
		return "group"
	case ItemRule:
		return "rule"
	case ItemValue:
		return "value"
	default:
		return "invalid"
	}
}

// ValueType is a Value item's declared type (§3).
type ValueType int

const (
	ValueString ValueType = iota
	ValueNumber
	ValueBoolean
)

// ValueOperator is a Value item's comparison operator (§3).
type ValueOperator int

const (
	OpEquals ValueOperator = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterOrEqual
	OpLessOrEqual
	OpPatternMatch
)

// ValueInstance is one keyed instance of a Value's concrete data (§3).
// Selector == "" denotes the default, selector-less instance.
type ValueInstance struct {
	Selector string
	Value    string
}

// Ident is an identifier attached to a Rule (e.g. a CCE id).
type Ident struct {
	System string
	ID     string
}

// Item is a node of the Benchmark tree: the root Benchmark, a Group, a
// Rule, or a Value, tagged by Kind. Parent is a non-owning back-reference
// (Go's garbage collector tolerates the resulting cycle; nothing in this
// package ever mutates an Item reachable from a Benchmark after
// construction — tailoring and check-pinning always work on fresh clones).
type Item struct {
	Kind            ItemKind
	ID              string
	Weight          float64
	Platforms       []string
	DefaultSelected bool

	Parent   *Item
	Children []*Item // Group, Benchmark

	// Rule-only fields.
	Checks        []*Check
	ComplexChecks []*ComplexCheck
	FixText       string
	Idents        []Ident
	Severity      string
	Role          string
	Version       string

	// Value-only fields.
	ValueType ValueType
	Operator  ValueOperator
	Instances []ValueInstance
}

// hasPlatforms reports whether the item carries any platform references;
// CPE resolution (C5) only runs when Platforms is non-empty, and an item
// without any is applicable unconditionally (§4.5).
func (it *Item) hasPlatforms() bool { return len(it.Platforms) > 0 }

// ComplexCheck is a boolean-combinator node over child checks (§3, §4.7).
// A Rule's complex-checks are stored separately from its simple Checks
// because the Check Chooser (§4.6) treats the two lists as mutually
// exclusive: any complex-check present makes all simple checks invisible.
type ComplexCheck struct {
	Negate   bool
	Operator ComplexOperator
	Children []ComplexCheckChild
}

// ComplexCheckChild is either a nested ComplexCheck or a leaf simple Check
// held by pointer (not an index into Rule.Checks), matching the XCCDF grammar
// where <complex-check> children are themselves <check>/<complex-check>.
type ComplexCheckChild struct {
	Complex *ComplexCheck
	Leaf    *Check
}

// ContentRef is one alternative content location for a Check (§3, §4.7).
// Name == "" means "unset" — the slot multi-check expansion fills in.
type ContentRef struct {
	Href string
	Name string
}

// Export is one Check export: it asks the engine to bind a Value's
// resolved data under an engine-visible Name (§3, §4.3).
type Export struct {
	ValueID string
	Name    string
}

// Check is a simple check: a system URI, optional selector, negate flag,
// multicheck flag, ordered content-refs, and ordered imports/exports
// (§3). PinnedRef is nil on every Check reachable from a Benchmark; it is
// only ever set on the private clone the Rule Runner attaches to a
// RuleResult (§4.7, §9 open question 2: "the Check attached to a
// RuleResult is always a fresh clone owned by that RuleResult").
type Check struct {
	System      string
	Selector    string
	Negate      bool
	MultiCheck  bool
	ContentRefs []ContentRef
	Imports     []string
	Exports     []Export

	PinnedRef *ContentRef
}

// clone returns a deep-enough copy of c for safe decoration (pinning a
// content-ref) without mutating the Benchmark's original.
func (c *Check) clone() *Check {
	cp := *c
	cp.ContentRefs = append([]ContentRef(nil), c.ContentRefs...)
	cp.Imports = append([]string(nil), c.Imports...)
	cp.Exports = append([]Export(nil), c.Exports...)
	cp.PinnedRef = nil
	return &cp
}

// Benchmark is the read-only root of an XCCDF document: a tree of
// Groups/Rules/Values plus the Profiles that tailor it. Construct one
// with NewBenchmark; the core never mutates it after construction.
type Benchmark struct {
	SchemaVersion string
	Root          *Item
	PlainTexts    map[string]string // id -> plain text, for Substitute

	EmbeddedCPEDictionary   *CPEDictionary
	EmbeddedCPELanguageModel *CPELanguageModel

	profiles     map[string]*Profile
	profileOrder []string
	byID         map[string]*Item
}

// NewBenchmark validates and indexes a caller-constructed Benchmark tree.
// It is the one place item-id uniqueness is enforced (§3: "id (unique
// string)").
func NewBenchmark(root *Item, schemaVersion string, plainTexts map[string]string, profiles []*Profile) (*Benchmark, error) {
	if root == nil || root.Kind != ItemBenchmark {
		return nil, errInternal("NewBenchmark requires a root Item of kind ItemBenchmark")
	}
	bm := &Benchmark{
		SchemaVersion: schemaVersion,
		Root:          root,
		PlainTexts:    plainTexts,
		profiles:      make(map[string]*Profile, len(profiles)),
		byID:          make(map[string]*Item),
	}
	if bm.PlainTexts == nil {
		bm.PlainTexts = map[string]string{}
	}
	if err := bm.index(root); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if _, exists := bm.profiles[p.ID]; exists {
			return nil, errInternal(fmt.Sprintf("duplicate profile id %q", p.ID))
		}
		bm.profiles[p.ID] = p
		bm.profileOrder = append(bm.profileOrder, p.ID)
	}
	return bm, nil
}

func (bm *Benchmark) index(it *Item) error {
	if it.ID != "" {
		if _, exists := bm.byID[it.ID]; exists {
			return errInternal(fmt.Sprintf("duplicate item id %q", it.ID))
		}
		bm.byID[it.ID] = it
	}
	for _, c := range it.Children {
		if err := bm.index(c); err != nil {
			return err
		}
	}
	return nil
}

// Item looks up a Benchmark item by id.
func (bm *Benchmark) Item(id string) (*Item, bool) {
	it, ok := bm.byID[id]
	return it, ok
}

// Profile looks up a Profile by id.
func (bm *Benchmark) Profile(id string) (*Profile, bool) {
	p, ok := bm.profiles[id]
	return p, ok
}

// ProfileIDs returns profile ids in declaration order.
func (bm *Benchmark) ProfileIDs() []string {
	return append([]string(nil), bm.profileOrder...)
}

// walkPreOrder calls fn for every item in the tree in Benchmark pre-order
// (§5: "RuleResults in a TestResult appear in Benchmark pre-order of
// their Rules").
func walkPreOrder(it *Item, fn func(*Item)) {
	fn(it)
	for _, c := range it.Children {
		walkPreOrder(c, fn)
	}
}

// SetValue is one Profile setvalue directive (§3). Profile stores these,
// RefineRule, and RefineValue as ordered slices rather than maps because
// §4.3/§4.4's "last match wins" rule requires a left fold over
// declaration order, not a first-match (or unordered) lookup.
type SetValue struct {
	ValueID string
	Literal string
}

// RefineRule is one Profile refine-rule directive (§3). Nil fields mean
// "not overridden by this directive".
type RefineRule struct {
	RuleID   string
	Weight   *float64
	Severity *string
	Role     *string
	Selector *string
}

// RefineValue is one Profile refine-value directive (§3).
type RefineValue struct {
	ValueID  string
	Selector *string
	Operator *ValueOperator
}

// Profile is a named tailoring of a Benchmark (§3).
type Profile struct {
	ID           string
	Selects      map[string]bool
	SetValues    []SetValue
	RefineRules  []RefineRule
	RefineValues []RefineValue
}

// lastRefineRule returns the last RefineRule matching ruleID, per the
// "last match wins" rule (§4.4, §4.6, §4.10).
func (p *Profile) lastRefineRule(ruleID string) *RefineRule {
	if p == nil {
		return nil
	}
	var found *RefineRule
	for i := range p.RefineRules {
		if p.RefineRules[i].RuleID == ruleID {
			found = &p.RefineRules[i]
		}
	}
	return found
}

// lastRefineValue returns the last RefineValue matching valueID (§4.3).
func (p *Profile) lastRefineValue(valueID string) *RefineValue {
	if p == nil {
		return nil
	}
	var found *RefineValue
	for i := range p.RefineValues {
		if p.RefineValues[i].ValueID == valueID {
			found = &p.RefineValues[i]
		}
	}
	return found
}

// lastSetValue returns the last SetValue matching valueID (§4.3, §4.10).
func (p *Profile) lastSetValue(valueID string) *SetValue {
	if p == nil {
		return nil
	}
	var found *SetValue
	for i := range p.SetValues {
		if p.SetValues[i].ValueID == valueID {
			found = &p.SetValues[i]
		}
	}
	return found
}

// selectFor returns the Profile's select directive for id, if any.
func (p *Profile) selectFor(id string) (bool, bool) {
	if p == nil || p.Selects == nil {
		return false, false
	}
	v, ok := p.Selects[id]
	return v, ok
}

// ValueBinding is the resolved, engine-visible form of a Check export
// (§3, §4.3). Owned by the stack frame that dispatches a check; never
// persisted.
type ValueBinding struct {
	Name     string
	Type     ValueType
	Value    string
	SetValue *string
	Operator ValueOperator
}

// RuleResult is one Rule outcome in a TestResult (§3).
type RuleResult struct {
	RuleID    string
	Result    ResultKind
	Weight    float64
	Version   string
	Severity  string
	Role      string
	Timestamp time.Time
	FixText   string
	Idents    []Ident
	Check     *Check // pinned clone; nil if no check was evaluated
	Message   string
}

// TestResult is the ordered outcome of one Policy evaluation (§3).
type TestResult struct {
	ID      string
	RunID   string // internal correlation id, distinct from ID (see SPEC_FULL.md)
	Start   time.Time
	End     time.Time
	Results []RuleResult
	Scores  []Score // optional; populated by callers via ComputeScore, one per scoring system
}
