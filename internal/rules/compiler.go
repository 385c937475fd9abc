package rules

import (
	"fmt"
	"sort"
	"strings"
)

type compiledExpression struct {
	matcher Matcher
	weight  float64
	source  string
}

// CompiledRule pairs a RuleDefinition with its pre-validated matchers.
// Instances are owned exclusively by the RuleSet produced by Compile and
// are never mutated after compilation.
type CompiledRule struct {
	Def        RuleDefinition
	patterns   []compiledExpression
	exclusions []Matcher
}

// Evaluate applies the rule to text. It reports the span and confidence of
// the strongest matching expression, or ok=false when no expression matches
// or any exclusion expression vetoes the match.
func (r *CompiledRule) Evaluate(text string) (span string, confidence float64, ok bool) {
	for _, excl := range r.exclusions {
		if _, hit := excl.Match(text); hit {
			return "", 0, false
		}
	}

	for _, expr := range r.patterns {
		s, hit := expr.matcher.Match(text)
		if hit && expr.weight > confidence {
			span = s
			confidence = expr.weight
			ok = true
		}
	}
	return span, confidence, ok
}

// Compile validates rule definitions and builds an immutable RuleSet.
// Compilation is best-effort: a malformed rule yields an error-severity
// CompileError and is excluded without blocking the rest. Structural
// duplicates are collapsed to one copy with a warning. The returned RuleSet
// is safe to share across concurrent classification calls.
func Compile(defs []RuleDefinition) (*RuleSet, []CompileError) {
	var diags []CompileError
	seen := make(map[string]bool)

	set := &RuleSet{
		byTaxonomy: make(map[Taxonomy][]*CompiledRule),
	}

	for _, def := range defs {
		if def.ID == "" {
			def.ID = fmt.Sprintf("%s/%s", def.Taxonomy, strings.Join(def.FullPath(), "/"))
		}

		key := identityKey(&def)
		if seen[key] {
			diags = append(diags, CompileError{
				Taxonomy: def.Taxonomy,
				Path:     def.FullPath(),
				Severity: SeverityWarning,
				Reason:   "duplicate rule definition; keeping first copy",
			})
			continue
		}

		compiled, errs := compileRule(def)
		diags = append(diags, errs...)
		if compiled == nil {
			continue
		}

		seen[key] = true
		set.rules = append(set.rules, compiled)
		set.byTaxonomy[def.Taxonomy] = append(set.byTaxonomy[def.Taxonomy], compiled)
	}

	return set, diags
}

func compileRule(def RuleDefinition) (*CompiledRule, []CompileError) {
	fail := func(expression, reason string) []CompileError {
		return []CompileError{{
			Taxonomy:   def.Taxonomy,
			Path:       def.FullPath(),
			Expression: expression,
			Severity:   SeverityError,
			Reason:     reason,
		}}
	}

	if def.Taxonomy == "" {
		return nil, fail("", "missing taxonomy")
	}
	if def.Label == "" && len(def.Path) == 0 {
		return nil, fail("", "missing label")
	}
	if len(def.Patterns) == 0 {
		return nil, fail("", "rule declares no match expressions")
	}

	rule := &CompiledRule{Def: def}

	for _, expr := range def.Patterns {
		if expr.Pattern == "" {
			return nil, fail("", "empty match expression")
		}
		if expr.Weight <= 0 || expr.Weight > 1 {
			return nil, fail(expr.Pattern, fmt.Sprintf("confidence weight %.2f outside (0, 1]", expr.Weight))
		}
		m, err := compileMatcher(expr)
		if err != nil {
			return nil, fail(expr.Pattern, err.Error())
		}
		rule.patterns = append(rule.patterns, compiledExpression{
			matcher: m,
			weight:  expr.Weight,
			source:  expr.Pattern,
		})
	}

	for _, excl := range def.Exclusions {
		if excl.Pattern == "" {
			return nil, fail("", "empty exclusion expression")
		}
		m, err := compileMatcher(excl)
		if err != nil {
			return nil, fail(excl.Pattern, err.Error())
		}
		rule.exclusions = append(rule.exclusions, m)
	}

	return rule, nil
}

// identityKey builds the structural identity used for deduplication:
// taxonomy path + match expressions + scope.
func identityKey(def *RuleDefinition) string {
	scopes := append([]string(nil), def.Scopes...)
	sort.Strings(scopes)

	patterns := make([]string, 0, len(def.Patterns))
	for _, p := range def.Patterns {
		patterns = append(patterns, string(p.Kind)+":"+p.Pattern)
	}
	sort.Strings(patterns)

	return strings.Join([]string{
		string(def.Taxonomy),
		strings.Join(def.FullPath(), "\x1f"),
		strings.Join(patterns, "\x1f"),
		strings.Join(scopes, "\x1f"),
	}, "\x1e")
}
