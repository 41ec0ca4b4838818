package xccdfpolicy

// Scoring system URIs recognized by the Score Engine (§4.9). These are
// literal XCCDF-standard URNs, not derived from anything else in this
// package.
const (
	ScoringDefault        = "urn:xccdf:scoring:default"
	ScoringFlat           = "urn:xccdf:scoring:flat"
	ScoringFlatUnweighted = "urn:xccdf:scoring:flat-unweighted"
	ScoringAbsolute       = "urn:xccdf:scoring:absolute"
)

// Score is one scoring-system result over a TestResult (§4.9).
type Score struct {
	System   string
	Score    float64
	MaxScore float64
}

// scoreNode carries the per-item running totals the iterative post-order
// walk accumulates, keyed by *Item. Group/Benchmark nodes fold their
// children's (score, maxscore) pairs; Rule nodes seed theirs directly
// from the RuleResult.
type scoreNode struct {
	score    float64
	maxScore float64
	counted  bool // false means "contributes nothing" (all children skipped)
}

// ComputeScore implements the Score Engine (C9, §4.9) for one of the four
// recognized scoring systems. It returns errUnknownScoringSystem for
// anything else.
//
// default walks the Benchmark tree and folds each Group as the
// weight-normalized average of its scored children, recursively, so a
// deeply nested Group's weight applies once at each level (NISTIR-7275r4
// "default" scoring). flat and flat-unweighted ignore the tree shape
// entirely and fold every counted Rule directly under the Benchmark, the
// latter treating every Rule's weight as 1. absolute reports 1 (out of 1)
// only if every counted Rule passed, else 0.
func ComputeScore(bm *Benchmark, tr *TestResult, systemURI string) (Score, error) {
	results := make(map[string]RuleResult, len(tr.Results))
	for _, rr := range tr.Results {
		results[rr.RuleID] = rr
	}

	switch systemURI {
	case ScoringDefault:
		n := foldDefault(bm.Root, results)
		return Score{System: systemURI, Score: n.score, MaxScore: n.maxScore}, nil
	case ScoringFlat:
		return flatScore(bm.Root, results, false), nil
	case ScoringFlatUnweighted:
		return flatScore(bm.Root, results, true), nil
	case ScoringAbsolute:
		return absoluteScore(bm.Root, results), nil
	default:
		return Score{}, errUnknownScoringSystem(systemURI)
	}
}

// foldDefault computes the default scoring system with an explicit stack
// so arbitrarily deep Benchmark trees don't grow the Go call stack
// one frame per level (§9 design note: deep trees must not overflow the
// stack, and an iterative post-order walk is an accepted way to avoid it).
func foldDefault(root *Item, results map[string]RuleResult) scoreNode {
	type frame struct {
		item     *Item
		visited  bool
	}
	childScores := make(map[*Item]scoreNode)

	stack := []frame{{item: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if !top.visited {
			top.visited = true
			for i := len(top.item.Children) - 1; i >= 0; i-- {
				stack = append(stack, frame{item: top.item.Children[i]})
			}
			continue
		}
		it := top.item
		stack = stack[:len(stack)-1]

		switch it.Kind {
		case ItemRule:
			childScores[it] = ruleScoreNode(it, results)
		case ItemValue:
			childScores[it] = scoreNode{}
		default: // Group, Benchmark: weighted average of scored children
			var num, den float64
			haveCounted := false
			for _, c := range it.Children {
				cs := childScores[c]
				if !cs.counted {
					continue
				}
				haveCounted = true
				w := effectiveChildWeight(c, results)
				num += cs.score * w
				den += cs.maxScore * w
			}
			if !haveCounted || den == 0 {
				childScores[it] = scoreNode{}
				continue
			}
			childScores[it] = scoreNode{score: (num / den) * 100, maxScore: 100, counted: true}
		}
	}
	return childScores[root]
}

// effectiveChildWeight reports the weight a Group-level fold should use
// for child c: a Rule's profile-refined weight (the same RuleResult.Weight
// flatScore sums by), falling back to the Item's own declared Weight for
// Groups, which have no refine-rule weight override.
func effectiveChildWeight(c *Item, results map[string]RuleResult) float64 {
	if c.Kind == ItemRule {
		if rr, ok := results[c.ID]; ok {
			return rr.Weight
		}
	}
	return c.Weight
}

func ruleScoreNode(rule *Item, results map[string]RuleResult) scoreNode {
	rr, ok := results[rule.ID]
	if !ok || !rr.Result.countedForScore() {
		return scoreNode{}
	}
	if rr.Result.passLike() {
		return scoreNode{score: 100, maxScore: 100, counted: true}
	}
	return scoreNode{score: 0, maxScore: 100, counted: true}
}

// flatScore sums every counted Rule's contribution directly under the
// Benchmark, ignoring Group nesting and Group weight entirely (§4.9). The
// tree-shaped "internal node" formula in §4.9 ("score = Σchild.score;
// weight = Σchild.weight") collapses, for this per-leaf rule, to a flat
// sum over every counted Rule regardless of depth: unlike "default",
// flat never normalizes by a running weight at intermediate Group
// levels, so summing leaves directly is equivalent and avoids the extra
// tree walk. The result is a raw (score, weight) pair, not a 0-100
// percentage — §8's "flat-unweighted.score ≤ flat-unweighted.weight =
// count_of_counted_rules" only holds on that raw scale.
func flatScore(root *Item, results map[string]RuleResult, unweighted bool) Score {
	var num, den float64
	walkPreOrder(root, func(it *Item) {
		if it.Kind != ItemRule {
			return
		}
		rr, ok := results[it.ID]
		if !ok || !rr.Result.countedForScore() {
			return
		}
		w := rr.Weight
		if unweighted {
			w = 1
		}
		if rr.Result.passLike() {
			num += w
		}
		den += w
	})
	system := ScoringFlat
	if unweighted {
		system = ScoringFlatUnweighted
	}
	return Score{System: system, Score: num, MaxScore: den}
}

// absoluteScore implements the all-or-nothing scoring system (§4.9):
// compute flat (weighted) scoring first, then collapse it to 1 if every
// counted Rule passed, else 0 — the literal §8 range is {0, 1}, not
// {0, 100}.
func absoluteScore(root *Item, results map[string]RuleResult) Score {
	flat := flatScore(root, results, false)
	if flat.MaxScore == 0 {
		return Score{System: ScoringAbsolute, Score: 0, MaxScore: 0}
	}
	if flat.Score == flat.MaxScore {
		return Score{System: ScoringAbsolute, Score: 1, MaxScore: 1}
	}
	return Score{System: ScoringAbsolute, Score: 0, MaxScore: 1}
}
