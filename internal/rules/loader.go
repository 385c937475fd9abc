package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleDocument is the on-disk YAML schema: one taxonomy per document.
type ruleDocument struct {
	Taxonomy Taxonomy         `yaml:"taxonomy"`
	Rules    []RuleDefinition `yaml:"rules"`
}

// LoadDir reads every YAML rule document in dir and returns the rule
// definitions found. A malformed document produces an error-severity
// CompileError and is skipped; only an unreadable directory fails the call.
func LoadDir(dir string) ([]RuleDefinition, []CompileError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var defs []RuleDefinition
	var diags []CompileError

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			diags = append(diags, CompileError{
				Severity: SeverityError,
				Path:     []string{name},
				Reason:   fmt.Sprintf("read document: %v", err),
			})
			continue
		}

		parsed, err := parseDocument(data)
		if err != nil {
			diags = append(diags, CompileError{
				Severity: SeverityError,
				Path:     []string{name},
				Reason:   fmt.Sprintf("parse document: %v", err),
			})
			continue
		}

		defs = append(defs, parsed...)
	}

	return defs, diags, nil
}

// parseDocument decodes one YAML rule document and stamps each rule with the
// document's taxonomy.
func parseDocument(data []byte) ([]RuleDefinition, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Taxonomy == "" {
		return nil, fmt.Errorf("document declares no taxonomy")
	}

	defs := make([]RuleDefinition, 0, len(doc.Rules))
	for _, rule := range doc.Rules {
		rule.Taxonomy = doc.Taxonomy
		if rule.Label == "" && len(rule.Path) > 0 {
			rule.Label = rule.Path[len(rule.Path)-1]
		}
		defs = append(defs, rule)
	}
	return defs, nil
}
