package ensemble

import (
	"errors"
	"math"
	"sort"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

var (
	// ErrInputMismatch indicates the results and weights slices disagree in
	// length or no inputs were provided.
	ErrInputMismatch = errors.New("ensemble: results and weights mismatch")
	// ErrAllClassifiersFailed indicates no classifier produced a usable
	// result, so there is nothing to combine.
	ErrAllClassifiersFailed = errors.New("ensemble: all classifiers failed")
)

const poolEpsilon = 1e-9

// Options tunes how per-classifier results are folded together.
type Options struct {
	// AgreementBonus is added to the combined confidence when every voting
	// classifier backs the same label, capped at 1.0. Zero disables it, which
	// also makes combined confidences invariant under uniform weight scaling.
	AgreementBonus float64
	// ReviewThreshold flags the combined result for manual review when the
	// overall confidence falls below it.
	ReviewThreshold float64
}

// DefaultAgreementBonus rewards unanimous classifier agreement on a label.
const DefaultAgreementBonus = 0.05

func (o Options) reviewThreshold() float64 {
	if o.ReviewThreshold <= 0 {
		return classify.DefaultReviewThreshold
	}
	return o.ReviewThreshold
}

type pool struct {
	label  string
	weight float64
}

// Combine folds the per-classifier results into one final result with a
// weighted vote per taxonomy. Each classifier contributes its weight,
// scaled by its confidence, to the pool of the label it chose; null and
// ambiguous verdicts abstain. The largest pool wins. When every voter
// agrees the combined confidence is the weighted mean of their confidences
// plus the agreement bonus; under disagreement it is the winning pool's
// share of all votes, which keeps the outcome invariant under uniform
// weight scaling. Tied pools yield an ambiguous verdict.
func Combine(results []classify.ClassificationResult, weights []float64, opts Options) (classify.ClassificationResult, error) {
	if len(results) == 0 {
		return classify.ClassificationResult{}, ErrAllClassifiersFailed
	}
	if len(results) != len(weights) {
		return classify.ClassificationResult{}, ErrInputMismatch
	}
	for _, w := range weights {
		if w < 0 {
			return classify.ClassificationResult{}, ErrInputMismatch
		}
	}

	combined := classify.ClassificationResult{Source: "ensemble"}

	var sum float64
	anyNull := false
	for _, taxonomy := range rules.Taxonomies() {
		verdict := combineTaxonomy(results, weights, taxonomy, opts)
		*combined.Verdict(taxonomy) = verdict

		sum += verdict.Confidence
		if verdict.Label == nil {
			anyNull = true
		}
	}

	combined.Overall = sum / float64(len(rules.Taxonomies()))
	combined.RequiresReview = anyNull || combined.Overall < opts.reviewThreshold()
	return combined, nil
}

func combineTaxonomy(results []classify.ClassificationResult, weights []float64, taxonomy rules.Taxonomy, opts Options) classify.TaxonomyVerdict {
	verdict := classify.TaxonomyVerdict{Taxonomy: taxonomy}

	pools := make(map[string]*pool)
	var total float64
	voters := 0
	var weightedConfidence, weightSum float64

	for i := range results {
		v := results[i].Verdict(taxonomy)
		if v == nil || v.Label == nil {
			continue
		}

		vote := weights[i] * v.Confidence
		p, ok := pools[*v.Label]
		if !ok {
			p = &pool{label: *v.Label}
			pools[*v.Label] = p
		}
		p.weight += vote

		total += vote
		voters++
		weightedConfidence += weights[i] * v.Confidence
		weightSum += weights[i]
	}

	if len(pools) == 0 || total <= poolEpsilon {
		return verdict
	}

	ranked := make([]*pool, 0, len(pools))
	for _, p := range pools {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if math.Abs(ranked[i].weight-ranked[j].weight) > poolEpsilon {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].label < ranked[j].label
	})

	for _, p := range ranked {
		verdict.Alternatives = append(verdict.Alternatives, classify.Candidate{
			Label: p.label,
			Score: p.weight / total,
		})
	}

	winner := ranked[0]

	if len(ranked) > 1 && math.Abs(winner.weight-ranked[1].weight) <= poolEpsilon {
		verdict.Ambiguous = true
		verdict.Confidence = winner.weight / total
		return verdict
	}

	label := winner.label
	verdict.Label = &label

	if len(pools) == 1 {
		// Unanimous vote: weighted mean of the voters' confidences plus the
		// agreement bonus. A lone voter earns no bonus.
		confidence := weightedConfidence / weightSum
		if voters > 1 {
			confidence += opts.AgreementBonus
		}
		verdict.Confidence = math.Min(1.0, confidence)
	} else {
		// Disagreement: the winner's share of the vote mass.
		verdict.Confidence = winner.weight / total
	}
	return verdict
}
