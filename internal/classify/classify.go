// Package classify implements the hierarchical document classifier: pure
// rule evaluation over an immutable rule set, confidence scoring with
// explicit conflict resolution, and the classifier implementations combined
// by the ensemble.
package classify

import (
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

// RawMatch records one rule that matched the document text, with the
// confidence of its strongest matching expression. RawMatches are produced
// per classification call, owned by that call, and discarded after scoring.
type RawMatch struct {
	RuleID     string         `json:"rule_id"`
	Taxonomy   rules.Taxonomy `json:"taxonomy"`
	Path       []string       `json:"path"`
	Label      string         `json:"label"`
	Span       string         `json:"span"`
	Confidence float64        `json:"confidence"`
	Priority   int            `json:"priority"`
}

// CandidateLabel returns the label this match contributes to the given
// taxonomy, or "" when it does not contribute. A hierarchical category rule
// with path [Fertilizer, Commercial] contributes "Fertilizer" to the
// category taxonomy and "Commercial" to the subcategory taxonomy.
func (m *RawMatch) CandidateLabel(taxonomy rules.Taxonomy) string {
	switch taxonomy {
	case rules.TaxonomyCategory:
		if m.Taxonomy == rules.TaxonomyCategory {
			return m.Path[0]
		}
	case rules.TaxonomySubcategory:
		if m.Taxonomy == rules.TaxonomySubcategory {
			return m.Label
		}
		if m.Taxonomy == rules.TaxonomyCategory && len(m.Path) > 1 {
			return m.Path[len(m.Path)-1]
		}
	default:
		if m.Taxonomy == taxonomy {
			return m.Label
		}
	}
	return ""
}

// Classify evaluates every in-scope compiled rule against the text and
// returns one RawMatch per matching rule. Matching is case-insensitive and
// whole-token; a rule matches only when at least one match expression
// succeeds and no exclusion expression does. Repeated occurrences of a rule
// in the text still produce exactly one RawMatch.
//
// Classify is a pure function: it performs no I/O, touches no shared
// mutable state, and is safe to invoke concurrently over the same RuleSet.
func Classify(text string, jurisdictionHint *string, set *rules.RuleSet) []RawMatch {
	var matches []RawMatch

	for _, taxonomy := range rules.Taxonomies() {
		for _, rule := range set.Rules(taxonomy) {
			if !rule.Def.AppliesTo(jurisdictionHint) {
				continue
			}

			span, confidence, ok := rule.Evaluate(text)
			if !ok {
				continue
			}

			matches = append(matches, RawMatch{
				RuleID:     rule.Def.ID,
				Taxonomy:   rule.Def.Taxonomy,
				Path:       rule.Def.FullPath(),
				Label:      rule.Def.Leaf(),
				Span:       span,
				Confidence: confidence,
				Priority:   rule.Def.Priority,
			})
		}
	}

	return matches
}
