package rules_test

import (
	"testing"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/rules"
)

func tokenRule(taxonomy rules.Taxonomy, label string, weight float64, patterns ...string) rules.RuleDefinition {
	def := rules.RuleDefinition{
		Taxonomy: taxonomy,
		Label:    label,
	}
	for _, p := range patterns {
		def.Patterns = append(def.Patterns, rules.Expression{Pattern: p, Weight: weight})
	}
	return def
}

func TestTokenMatchingWholeWords(t *testing.T) {
	set, diags := rules.Compile([]rules.RuleDefinition{
		tokenRule(rules.TaxonomyClient, "ARB", 0.7, "ARB"),
	})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	rule := set.Rules(rules.TaxonomyClient)[0]

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact token", "invoice from ARB pending", true},
		{"case insensitive", "invoice from arb pending", true},
		{"inside longer word", "ARBORJET registration renewal", false},
		{"suffix of longer word", "shipped to SCARBOROUGH office", false},
		{"punctuation delimited", "client code: ARB.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := rule.Evaluate(tt.text)
			if ok != tt.want {
				t.Errorf("Evaluate(%q) matched = %v, want %v", tt.text, ok, tt.want)
			}
		})
	}
}

func TestEvaluateStrongestExpressionWins(t *testing.T) {
	def := rules.RuleDefinition{
		Taxonomy: rules.TaxonomyAction,
		Label:    "RENEW",
		Patterns: []rules.Expression{
			{Pattern: "renewal", Weight: 0.6},
			{Pattern: "registration renewal", Weight: 0.9},
		},
	}
	set, diags := rules.Compile([]rules.RuleDefinition{def})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	rule := set.Rules(rules.TaxonomyAction)[0]
	span, confidence, ok := rule.Evaluate("annual registration renewal enclosed")
	if !ok {
		t.Fatal("expected a match")
	}
	if confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", confidence)
	}
	if span != "registration renewal" {
		t.Errorf("span = %q, want %q", span, "registration renewal")
	}
}

func TestExclusionsVetoMatches(t *testing.T) {
	def := rules.RuleDefinition{
		Taxonomy:   rules.TaxonomyAction,
		Label:      "NEW",
		Patterns:   []rules.Expression{{Pattern: "registration", Weight: 0.8}},
		Exclusions: []rules.Expression{{Pattern: "renewal"}},
	}
	set, _ := rules.Compile([]rules.RuleDefinition{def})
	rule := set.Rules(rules.TaxonomyAction)[0]

	if _, _, ok := rule.Evaluate("new product registration"); !ok {
		t.Error("expected match without exclusion term")
	}
	if _, _, ok := rule.Evaluate("registration renewal form"); ok {
		t.Error("expected exclusion to veto the match")
	}
}

func TestRegexExpressions(t *testing.T) {
	def := rules.RuleDefinition{
		Taxonomy: rules.TaxonomyJurisdiction,
		Label:    "ME",
		Patterns: []rules.Expression{
			{Pattern: `\bAugusta,?\s+Maine\b`, Kind: rules.KindRegex, Weight: 0.6},
		},
	}
	set, diags := rules.Compile([]rules.RuleDefinition{def})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	rule := set.Rules(rules.TaxonomyJurisdiction)[0]
	if _, _, ok := rule.Evaluate("office in augusta, maine 04330"); !ok {
		t.Error("expected case-insensitive regex match")
	}
}

func TestCompileRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		def  rules.RuleDefinition
	}{
		{
			"weight above one",
			tokenRule(rules.TaxonomyClient, "ARB", 1.5, "Arborjet"),
		},
		{
			"zero weight",
			tokenRule(rules.TaxonomyClient, "ARB", 0, "Arborjet"),
		},
		{
			"no patterns",
			rules.RuleDefinition{Taxonomy: rules.TaxonomyClient, Label: "ARB"},
		},
		{
			"missing label and path",
			tokenRule(rules.TaxonomyClient, "", 0.5, "Arborjet"),
		},
		{
			"malformed regex",
			rules.RuleDefinition{
				Taxonomy: rules.TaxonomyClient,
				Label:    "ARB",
				Patterns: []rules.Expression{{Pattern: "(unclosed", Kind: rules.KindRegex, Weight: 0.5}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, diags := rules.Compile([]rules.RuleDefinition{tt.def})
			if set.Len() != 0 {
				t.Errorf("expected rule to be excluded, got %d compiled rules", set.Len())
			}
			if len(diags) == 0 {
				t.Fatal("expected a compile diagnostic")
			}
			if diags[0].Severity != rules.SeverityError {
				t.Errorf("severity = %v, want error", diags[0].Severity)
			}
		})
	}
}

func TestCompileBestEffort(t *testing.T) {
	defs := []rules.RuleDefinition{
		tokenRule(rules.TaxonomyClient, "ARB", 0.9, "Arborjet"),
		tokenRule(rules.TaxonomyClient, "COR", 1.5, "Corteva"),
		tokenRule(rules.TaxonomyAction, "RENEW", 0.8, "renewal"),
	}

	set, diags := rules.Compile(defs)
	if set.Len() != 2 {
		t.Errorf("compiled rules = %d, want 2", set.Len())
	}
	if len(diags) != 1 {
		t.Errorf("diagnostics = %d, want 1", len(diags))
	}
}

func TestCompileDeduplicates(t *testing.T) {
	def := tokenRule(rules.TaxonomyClient, "ARB", 0.9, "Arborjet")

	set, diags := rules.Compile([]rules.RuleDefinition{def, def})
	if set.Len() != 1 {
		t.Errorf("compiled rules = %d, want 1", set.Len())
	}
	if len(diags) != 1 || diags[0].Severity != rules.SeverityWarning {
		t.Errorf("expected one duplicate warning, got %v", diags)
	}
}

func TestCompileAssignsIDs(t *testing.T) {
	def := rules.RuleDefinition{
		Taxonomy: rules.TaxonomyCategory,
		Path:     []string{"Commercial Fertilizers", "Specialty"},
		Patterns: []rules.Expression{{Pattern: "specialty fertilizer", Weight: 0.9}},
		Label:    "Specialty",
	}
	set, _ := rules.Compile([]rules.RuleDefinition{def})

	got := set.Rules(rules.TaxonomyCategory)[0].Def.ID
	want := "category/Commercial Fertilizers/Specialty"
	if got != want {
		t.Errorf("ID = %q, want %q", got, want)
	}
}
