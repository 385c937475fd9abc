package classify

import (
	"math"
	"sort"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

const scoreEpsilon = 1e-9

// Candidate is one competing label for a taxonomy with its aggregate score.
type Candidate struct {
	Label   string   `json:"label"`
	Score   float64  `json:"score"`
	RuleIDs []string `json:"rule_ids,omitempty"`
}

// ResolveOptions tunes conflict resolution. Zero values fall back to the
// documented defaults so the pure functions stay usable without config.
type ResolveOptions struct {
	// Threshold demotes verdicts whose winning confidence falls below it.
	Threshold float64
	// CorroborationBonus is added per additional independent corroborating
	// match for the same label, capped so repetition never dominates one
	// strong, specific pattern.
	CorroborationBonus float64
}

// DefaultThreshold is the per-taxonomy confidence floor below which a
// verdict is demoted to null.
const DefaultThreshold = 0.5

// DefaultCorroborationBonus is the additive score bonus per extra
// corroborating match.
const DefaultCorroborationBonus = 0.05

func (o ResolveOptions) normalize() ResolveOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.CorroborationBonus <= 0 {
		o.CorroborationBonus = DefaultCorroborationBonus
	}
	return o
}

type candidateState struct {
	label    string
	base     float64
	count    int
	priority int
	depth    int
	ruleIDs  []string
}

func (c *candidateState) score(bonus float64) float64 {
	return math.Min(1.0, c.base+bonus*float64(c.count-1))
}

// Resolve combines the raw matches contributing to one taxonomy into a
// single verdict. A candidate's aggregate score is the maximum confidence
// among its matches plus a capped corroboration bonus per additional match.
// Ties break on declared rule priority, then taxonomy depth (subcategory
// beats category); an unresolvable tie yields an ambiguous verdict with a
// null label, the tied score as confidence, and all tied candidates in
// Alternatives. Winners below the threshold are demoted to null with
// Alternatives preserved.
//
// Resolve is deterministic and side-effect free.
func Resolve(matches []RawMatch, taxonomy rules.Taxonomy, opts ResolveOptions) TaxonomyVerdict {
	opts = opts.normalize()

	states := make(map[string]*candidateState)
	for i := range matches {
		m := &matches[i]
		label := m.CandidateLabel(taxonomy)
		if label == "" {
			continue
		}

		state, ok := states[label]
		if !ok {
			state = &candidateState{label: label}
			states[label] = state
		}
		state.count++
		state.ruleIDs = append(state.ruleIDs, m.RuleID)
		if m.Confidence > state.base {
			state.base = m.Confidence
		}
		if m.Priority > state.priority {
			state.priority = m.Priority
		}
		if depth := len(m.Path); depth > state.depth {
			state.depth = depth
		}
	}

	verdict := TaxonomyVerdict{Taxonomy: taxonomy}
	if len(states) == 0 {
		return verdict
	}

	ranked := make([]*candidateState, 0, len(states))
	for _, state := range states {
		ranked = append(ranked, state)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].score(opts.CorroborationBonus), ranked[j].score(opts.CorroborationBonus)
		if math.Abs(si-sj) > scoreEpsilon {
			return si > sj
		}
		if ranked[i].priority != ranked[j].priority {
			return ranked[i].priority > ranked[j].priority
		}
		if ranked[i].depth != ranked[j].depth {
			return ranked[i].depth > ranked[j].depth
		}
		return ranked[i].label < ranked[j].label
	})

	for _, state := range ranked {
		verdict.Alternatives = append(verdict.Alternatives, Candidate{
			Label:   state.label,
			Score:   state.score(opts.CorroborationBonus),
			RuleIDs: state.ruleIDs,
		})
	}

	winner := ranked[0]
	winnerScore := winner.score(opts.CorroborationBonus)

	if tied(ranked, opts.CorroborationBonus) {
		// Unresolvable tie: admit ambiguity instead of guessing.
		verdict.Ambiguous = true
		verdict.Confidence = winnerScore
		return verdict
	}

	if winnerScore < opts.Threshold {
		// Insufficient evidence; alternatives stay visible for review.
		return verdict
	}

	label := winner.label
	verdict.Label = &label
	verdict.Confidence = winnerScore
	verdict.RuleIDs = winner.ruleIDs
	return verdict
}

// tied reports whether the top two candidates remain indistinguishable after
// score, priority, and depth comparison.
func tied(ranked []*candidateState, bonus float64) bool {
	if len(ranked) < 2 {
		return false
	}
	a, b := ranked[0], ranked[1]
	return math.Abs(a.score(bonus)-b.score(bonus)) <= scoreEpsilon &&
		a.priority == b.priority &&
		a.depth == b.depth
}
