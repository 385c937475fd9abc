// Package rules implements the pattern rule system for document classification.
// It provides rule definitions loaded from YAML configuration, a compiler that
// validates and pre-builds matchers, and an immutable versioned rule set that
// is swapped atomically on reload.
package rules

// Taxonomy identifies one independent classification axis.
type Taxonomy string

// The taxonomies resolved for every document.
const (
	TaxonomyCategory     Taxonomy = "category"
	TaxonomySubcategory  Taxonomy = "subcategory"
	TaxonomyAction       Taxonomy = "action"
	TaxonomyJurisdiction Taxonomy = "jurisdiction"
	TaxonomyClient       Taxonomy = "client"
)

// Taxonomies lists all resolved taxonomies in canonical order.
func Taxonomies() []Taxonomy {
	return []Taxonomy{
		TaxonomyCategory,
		TaxonomySubcategory,
		TaxonomyAction,
		TaxonomyJurisdiction,
		TaxonomyClient,
	}
}

// MatchKind selects how a match expression is interpreted.
type MatchKind string

const (
	// KindToken matches the expression as a case-insensitive whole-token
	// phrase; partial-word matches are rejected.
	KindToken MatchKind = "token"
	// KindRegex compiles the expression verbatim as a regular expression.
	KindRegex MatchKind = "regex"
)

// Expression is one matchable pattern within a rule. Weight declares the
// confidence contributed when the expression matches; exclusion expressions
// carry no weight.
type Expression struct {
	Pattern string    `yaml:"pattern"`
	Kind    MatchKind `yaml:"kind,omitempty"`
	Weight  float64   `yaml:"weight,omitempty"`
}

// RuleDefinition is the immutable description of one matchable term.
// Path is the taxonomy path the rule assigns; for hierarchical taxonomies
// the path carries both levels (e.g. ["Fertilizer", "Commercial"]), for flat
// taxonomies it is a single canonical label. Scopes restricts the rule to a
// set of jurisdiction codes; an empty set applies universally.
type RuleDefinition struct {
	ID         string       `yaml:"id,omitempty"`
	Taxonomy   Taxonomy     `yaml:"-"`
	Path       []string     `yaml:"path,omitempty"`
	Label      string       `yaml:"label"`
	Priority   int          `yaml:"priority,omitempty"`
	Scopes     []string     `yaml:"scopes,omitempty"`
	Patterns   []Expression `yaml:"patterns"`
	Exclusions []Expression `yaml:"exclusions,omitempty"`
}

// FullPath returns the taxonomy path, defaulting to the single label when
// no explicit path is declared.
func (d *RuleDefinition) FullPath() []string {
	if len(d.Path) > 0 {
		return d.Path
	}
	return []string{d.Label}
}

// Leaf returns the most specific label on the rule's path.
func (d *RuleDefinition) Leaf() string {
	path := d.FullPath()
	return path[len(path)-1]
}

// AppliesTo reports whether the rule is in scope for the given jurisdiction
// hint. Rules without scopes are universal; jurisdiction rules always apply
// since jurisdiction itself is being resolved.
func (d *RuleDefinition) AppliesTo(jurisdictionHint *string) bool {
	if len(d.Scopes) == 0 || d.Taxonomy == TaxonomyJurisdiction {
		return true
	}
	if jurisdictionHint == nil {
		return true
	}
	for _, scope := range d.Scopes {
		if scope == *jurisdictionHint {
			return true
		}
	}
	return false
}
