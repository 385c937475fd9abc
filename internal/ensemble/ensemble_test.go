package ensemble_test

import (
	"errors"
	"math"
	"testing"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/ensemble"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

// result builds a ClassificationResult with the same label and confidence on
// every taxonomy, which keeps combination arithmetic easy to verify.
func result(source, label string, confidence float64) classify.ClassificationResult {
	r := classify.ClassificationResult{Source: source}
	for _, taxonomy := range rules.Taxonomies() {
		l := label
		*r.Verdict(taxonomy) = classify.TaxonomyVerdict{
			Taxonomy:   taxonomy,
			Label:      &l,
			Confidence: confidence,
		}
	}
	r.Overall = confidence
	return r
}

func TestCombineUnanimousAgreement(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.9),
		result("model", "ARB", 0.8),
	}

	combined, err := ensemble.Combine(results, []float64{1, 1}, ensemble.Options{AgreementBonus: 0.05})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	if combined.Client.Label == nil || *combined.Client.Label != "ARB" {
		t.Fatalf("label = %v, want ARB", combined.Client.Label)
	}
	// Weighted mean 0.85 plus the agreement bonus.
	want := 0.85 + 0.05
	if math.Abs(combined.Client.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", combined.Client.Confidence, want)
	}
	if combined.RequiresReview {
		t.Error("unanimous high-confidence result should not require review")
	}
}

func TestCombineDisagreementPoolShare(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.9),
		result("model", "COR", 0.6),
	}

	combined, err := ensemble.Combine(results, []float64{1, 1}, ensemble.Options{})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	if combined.Client.Label == nil || *combined.Client.Label != "ARB" {
		t.Fatalf("label = %v, want ARB", combined.Client.Label)
	}
	// ARB pool 0.9 of 1.5 total vote mass.
	want := 0.9 / 1.5
	if math.Abs(combined.Client.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", combined.Client.Confidence, want)
	}
}

func TestCombineTiedDisagreementIsAmbiguous(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.8),
		result("model", "COR", 0.8),
	}

	combined, err := ensemble.Combine(results, []float64{1, 1}, ensemble.Options{})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	if combined.Client.Label != nil {
		t.Errorf("label = %q, want null for tied vote", *combined.Client.Label)
	}
	if !combined.Client.Ambiguous {
		t.Error("expected ambiguous verdict for tied vote")
	}
	// Equal pools: each holds half the vote mass.
	if math.Abs(combined.Client.Confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %v, want 0.5", combined.Client.Confidence)
	}
	if !combined.RequiresReview {
		t.Error("ambiguous verdicts must require review")
	}
}

func TestCombineIdenticalResultsEqualWeights(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.8),
		result("model", "ARB", 0.8),
	}

	// Without a configured bonus, combining two identical results is a
	// no-op on labels and confidences.
	combined, err := ensemble.Combine(results, []float64{1, 1}, ensemble.Options{})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	for _, taxonomy := range rules.Taxonomies() {
		got, want := combined.Verdict(taxonomy), results[0].Verdict(taxonomy)
		if got.Label == nil || *got.Label != *want.Label {
			t.Fatalf("%s: label = %v, want %q", taxonomy, got.Label, *want.Label)
		}
		if math.Abs(got.Confidence-want.Confidence) > 1e-9 {
			t.Errorf("%s: confidence = %v, want %v unchanged", taxonomy, got.Confidence, want.Confidence)
		}
	}

	// A configured agreement bonus shifts the confidence by exactly that
	// bonus and nothing else.
	boosted, err := ensemble.Combine(results, []float64{1, 1}, ensemble.Options{AgreementBonus: 0.05})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if got, want := boosted.Client.Confidence, 0.85; math.Abs(got-want) > 1e-9 {
		t.Errorf("boosted confidence = %v, want %v", got, want)
	}
}

func TestCombineWeightScaleInvariance(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.9),
		result("model", "COR", 0.6),
		result("second-model", "ARB", 0.7),
	}

	// Zero bonus keeps the combination scale invariant.
	opts := ensemble.Options{AgreementBonus: 0}

	base, err := ensemble.Combine(results, []float64{1, 2, 3}, opts)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	scaled, err := ensemble.Combine(results, []float64{10, 20, 30}, opts)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	for _, taxonomy := range rules.Taxonomies() {
		a, b := base.Verdict(taxonomy), scaled.Verdict(taxonomy)
		if math.Abs(a.Confidence-b.Confidence) > 1e-9 {
			t.Errorf("%s: confidence changed under uniform weight scaling: %v vs %v",
				taxonomy, a.Confidence, b.Confidence)
		}
		if (a.Label == nil) != (b.Label == nil) {
			t.Errorf("%s: label presence changed under uniform weight scaling", taxonomy)
		}
	}
}

func TestCombineHigherWeightDominates(t *testing.T) {
	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.8),
		result("model", "COR", 0.8),
	}

	combined, err := ensemble.Combine(results, []float64{1, 3}, ensemble.Options{})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Client.Label == nil || *combined.Client.Label != "COR" {
		t.Errorf("label = %v, want COR (heavier voter)", combined.Client.Label)
	}
}

func TestCombineNullVerdictsAbstain(t *testing.T) {
	abstaining := classify.ClassificationResult{Source: "model"}
	for _, taxonomy := range rules.Taxonomies() {
		*abstaining.Verdict(taxonomy) = classify.TaxonomyVerdict{Taxonomy: taxonomy}
	}

	results := []classify.ClassificationResult{
		result("rules", "ARB", 0.9),
		abstaining,
	}

	combined, err := ensemble.Combine(results, []float64{1, 5}, ensemble.Options{})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Client.Label == nil || *combined.Client.Label != "ARB" {
		t.Errorf("label = %v, want ARB (abstentions carry no vote)", combined.Client.Label)
	}
}

func TestCombineInputValidation(t *testing.T) {
	tests := []struct {
		name    string
		results []classify.ClassificationResult
		weights []float64
		want    error
	}{
		{"no inputs", nil, nil, ensemble.ErrAllClassifiersFailed},
		{"length mismatch", []classify.ClassificationResult{result("rules", "ARB", 0.9)}, []float64{1, 2}, ensemble.ErrInputMismatch},
		{"negative weight", []classify.ClassificationResult{result("rules", "ARB", 0.9)}, []float64{-1}, ensemble.ErrInputMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ensemble.Combine(tt.results, tt.weights, ensemble.Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
