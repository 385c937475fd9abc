package classify

import (
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

// TaxonomyVerdict is the resolved answer for one taxonomy on one document.
// A nil Label means no answer: either no evidence cleared the threshold
// (Confidence 0) or the top candidates tied (Ambiguous, Confidence holds the
// tied score). Alternatives always lists the competing candidates ranked by
// score so a reviewer can see why the engine was unsure.
type TaxonomyVerdict struct {
	Taxonomy     rules.Taxonomy `json:"taxonomy"`
	Label        *string        `json:"label"`
	Confidence   float64        `json:"confidence"`
	Ambiguous    bool           `json:"ambiguous,omitempty"`
	RuleIDs      []string       `json:"rule_ids,omitempty"`
	Alternatives []Candidate    `json:"alternatives,omitempty"`
}

// ClassificationResult aggregates the verdicts for all taxonomies plus an
// overall confidence and review flag. One is produced per document per
// classifier; the ensemble combines them into a final result.
type ClassificationResult struct {
	Source         string          `json:"source,omitempty"`
	Category       TaxonomyVerdict `json:"category"`
	Subcategory    TaxonomyVerdict `json:"subcategory"`
	Action         TaxonomyVerdict `json:"action"`
	Jurisdiction   TaxonomyVerdict `json:"jurisdiction"`
	Client         TaxonomyVerdict `json:"client"`
	Overall        float64         `json:"overall"`
	RequiresReview bool            `json:"requires_review"`
}

// Verdict returns the verdict for the given taxonomy.
func (r *ClassificationResult) Verdict(taxonomy rules.Taxonomy) *TaxonomyVerdict {
	switch taxonomy {
	case rules.TaxonomyCategory:
		return &r.Category
	case rules.TaxonomySubcategory:
		return &r.Subcategory
	case rules.TaxonomyAction:
		return &r.Action
	case rules.TaxonomyJurisdiction:
		return &r.Jurisdiction
	case rules.TaxonomyClient:
		return &r.Client
	}
	return nil
}

// ResultOptions tunes how per-taxonomy verdicts are folded into a result.
type ResultOptions struct {
	Resolve ResolveOptions
	// Thresholds overrides the resolve threshold per taxonomy.
	Thresholds map[rules.Taxonomy]float64
	// ReviewThreshold flags the result for manual review when the overall
	// confidence falls below it. Defaults to DefaultReviewThreshold.
	ReviewThreshold float64
}

// DefaultReviewThreshold is the overall confidence floor below which a
// result requires manual review.
const DefaultReviewThreshold = 0.7

func (o ResultOptions) reviewThreshold() float64 {
	if o.ReviewThreshold <= 0 {
		return DefaultReviewThreshold
	}
	return o.ReviewThreshold
}

func (o ResultOptions) resolveFor(taxonomy rules.Taxonomy) ResolveOptions {
	opts := o.Resolve
	if t, ok := o.Thresholds[taxonomy]; ok {
		opts.Threshold = t
	}
	return opts
}

// BuildResult resolves every taxonomy from the raw matches and computes the
// overall confidence and review flag. The overall confidence is the mean of
// the per-taxonomy confidences; the result requires review when that falls
// below the review threshold or any verdict has no label.
func BuildResult(matches []RawMatch, opts ResultOptions) ClassificationResult {
	var result ClassificationResult

	var sum float64
	anyNull := false
	for _, taxonomy := range rules.Taxonomies() {
		verdict := Resolve(matches, taxonomy, opts.resolveFor(taxonomy))
		*result.Verdict(taxonomy) = verdict

		sum += verdict.Confidence
		if verdict.Label == nil {
			anyNull = true
		}
	}

	result.Overall = sum / float64(len(rules.Taxonomies()))
	result.RequiresReview = anyNull || result.Overall < opts.reviewThreshold()
	return result
}
