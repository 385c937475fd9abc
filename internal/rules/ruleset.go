package rules

// RuleSet is an immutable collection of compiled rules. A RuleSet is built
// once by Compile, optionally stamped with a version by the Store, and never
// mutated afterwards, so it requires no locking across concurrent
// classification calls.
type RuleSet struct {
	version    uint64
	rules      []*CompiledRule
	byTaxonomy map[Taxonomy][]*CompiledRule
}

// Version returns the monotonically increasing snapshot version assigned by
// the Store; zero for sets compiled outside a Store.
func (s *RuleSet) Version() uint64 {
	return s.version
}

// Rules returns the compiled rules for one taxonomy in compilation order.
// The returned slice must not be modified.
func (s *RuleSet) Rules(t Taxonomy) []*CompiledRule {
	return s.byTaxonomy[t]
}

// Len returns the total number of compiled rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Counts returns the number of compiled rules per taxonomy.
func (s *RuleSet) Counts() map[Taxonomy]int {
	counts := make(map[Taxonomy]int, len(s.byTaxonomy))
	for taxonomy, rules := range s.byTaxonomy {
		counts[taxonomy] = len(rules)
	}
	return counts
}
