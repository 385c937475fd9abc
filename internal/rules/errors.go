package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompile wraps all rule compilation failures.
var ErrCompile = errors.New("rule compilation failed")

// Severity grades a CompileError. Error-severity diagnostics exclude the
// rule from the compiled set; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CompileError describes one diagnostic produced while compiling a rule.
type CompileError struct {
	Taxonomy   Taxonomy `json:"taxonomy"`
	Path       []string `json:"path"`
	Expression string   `json:"expression,omitempty"`
	Severity   Severity `json:"severity"`
	Reason     string   `json:"reason"`
}

func (e CompileError) Error() string {
	return fmt.Sprintf(
		"%s: %s/%s: %s",
		e.Severity, e.Taxonomy, strings.Join(e.Path, "/"), e.Reason,
	)
}

// Unwrap allows errors.Is(err, ErrCompile) on CompileError values.
func (e CompileError) Unwrap() error {
	return ErrCompile
}
