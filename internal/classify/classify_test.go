package classify_test

import (
	"reflect"
	"testing"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

func compile(t *testing.T, defs ...rules.RuleDefinition) *rules.RuleSet {
	t.Helper()
	set, diags := rules.Compile(defs)
	if len(diags) != 0 {
		t.Fatalf("unexpected compile diagnostics: %v", diags)
	}
	return set
}

func ptr(s string) *string { return &s }

func TestClassifyIdempotent(t *testing.T) {
	set := compile(t,
		rules.RuleDefinition{
			Taxonomy: rules.TaxonomyAction,
			Label:    "RENEW",
			Patterns: []rules.Expression{{Pattern: "renewal", Weight: 0.85}},
		},
		rules.RuleDefinition{
			Taxonomy: rules.TaxonomyClient,
			Label:    "ARB",
			Patterns: []rules.Expression{{Pattern: "Arborjet", Weight: 0.95}},
		},
	)

	text := "Arborjet renewal: annual renewal for the Arborjet fertilizer line"

	first := classify.Classify(text, nil, set)
	second := classify.Classify(text, nil, set)
	if !reflect.DeepEqual(first, second) {
		t.Error("classification is not deterministic for identical inputs")
	}

	// Repeated occurrences still produce one match per rule.
	if len(first) != 2 {
		t.Errorf("matches = %d, want 2", len(first))
	}
}

func TestClassifyHierarchicalCategory(t *testing.T) {
	set := compile(t,
		rules.RuleDefinition{
			Taxonomy: rules.TaxonomyCategory,
			Path:     []string{"Commercial Fertilizers"},
			Label:    "Commercial Fertilizers",
			Patterns: []rules.Expression{{Pattern: "fertilizer", Weight: 0.7}},
		},
		rules.RuleDefinition{
			Taxonomy: rules.TaxonomyCategory,
			Path:     []string{"Commercial Fertilizers", "Specialty"},
			Label:    "Specialty",
			Patterns: []rules.Expression{{Pattern: "specialty fertilizer", Weight: 0.9}},
		},
	)

	matches := classify.Classify("specialty fertilizer registration packet", nil, set)
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}

	result := classify.BuildResult(matches, classify.ResultOptions{})

	if result.Category.Label == nil || *result.Category.Label != "Commercial Fertilizers" {
		t.Errorf("category = %v, want Commercial Fertilizers", result.Category.Label)
	}
	if result.Subcategory.Label == nil || *result.Subcategory.Label != "Specialty" {
		t.Errorf("subcategory = %v, want Specialty", result.Subcategory.Label)
	}
	// The deeper rule's weight carries the subcategory confidence.
	if result.Subcategory.Confidence != 0.9 {
		t.Errorf("subcategory confidence = %v, want 0.9", result.Subcategory.Confidence)
	}
}

func TestClassifyJurisdictionScoping(t *testing.T) {
	set := compile(t,
		rules.RuleDefinition{
			Taxonomy: rules.TaxonomyAction,
			Label:    "TONNAGE",
			Scopes:   []string{"CA", "WA"},
			Patterns: []rules.Expression{{Pattern: "tonnage report", Weight: 0.9}},
		},
	)

	text := "quarterly tonnage report attached"

	if matches := classify.Classify(text, ptr("CA"), set); len(matches) != 1 {
		t.Errorf("in-scope hint: matches = %d, want 1", len(matches))
	}
	if matches := classify.Classify(text, ptr("TX"), set); len(matches) != 0 {
		t.Errorf("out-of-scope hint: matches = %d, want 0", len(matches))
	}
	// No hint leaves scoped rules in play.
	if matches := classify.Classify(text, nil, set); len(matches) != 1 {
		t.Errorf("no hint: matches = %d, want 1", len(matches))
	}
}

// TestClassifySeedRuleDocuments runs a representative state-agency renewal
// notice through the rule documents shipped under config/rules.
func TestClassifySeedRuleDocuments(t *testing.T) {
	defs, loadDiags, err := rules.LoadDir("../../config/rules")
	if err != nil {
		t.Fatalf("load rule documents: %v", err)
	}
	if len(loadDiags) != 0 {
		t.Fatalf("unexpected load diagnostics: %v", loadDiags)
	}
	set, compileDiags := rules.Compile(defs)
	if len(compileDiags) != 0 {
		t.Fatalf("unexpected compile diagnostics: %v", compileDiags)
	}

	text := "California Department of Agriculture — Commercial Fertilizer renewal notice"
	result := classify.BuildResult(classify.Classify(text, nil, set), classify.ResultOptions{})

	if result.Jurisdiction.Label == nil || *result.Jurisdiction.Label != "CA" {
		t.Fatalf("jurisdiction = %v, want CA", result.Jurisdiction.Label)
	}
	if result.Jurisdiction.Confidence < 0.9 {
		t.Errorf("jurisdiction confidence = %v, want >= 0.9", result.Jurisdiction.Confidence)
	}
	if result.Category.Label == nil || *result.Category.Label != "Commercial Fertilizers" {
		t.Fatalf("category = %v, want Commercial Fertilizers", result.Category.Label)
	}
	if result.Category.Confidence < 0.9 {
		t.Errorf("category confidence = %v, want >= 0.9", result.Category.Confidence)
	}
	if result.Action.Label == nil || *result.Action.Label != "RENEW" {
		t.Fatalf("action = %v, want RENEW", result.Action.Label)
	}
	if result.Action.Confidence < 0.8 {
		t.Errorf("action confidence = %v, want >= 0.8", result.Action.Confidence)
	}
}

func TestClassifyEmptyRuleSetFlagsReview(t *testing.T) {
	set := compile(t)

	matches := classify.Classify("anything at all", nil, set)
	result := classify.BuildResult(matches, classify.ResultOptions{})

	if !result.RequiresReview {
		t.Error("expected empty rule set to flag the document for review")
	}
	if result.Overall != 0 {
		t.Errorf("overall = %v, want 0", result.Overall)
	}
	for _, taxonomy := range rules.Taxonomies() {
		if v := result.Verdict(taxonomy); v.Label != nil {
			t.Errorf("%s label = %q, want null", taxonomy, *v.Label)
		}
	}
}
