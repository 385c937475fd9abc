package rules

import (
	"fmt"
	"regexp"
	"unicode"
)

// Matcher evaluates a pre-compiled match expression against document text.
// Implementations must be safe for concurrent use.
type Matcher interface {
	// Match returns the first matched span and whether the text matched.
	Match(text string) (string, bool)
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m *regexMatcher) Match(text string) (string, bool) {
	span := m.re.FindString(text)
	if span == "" {
		// Distinguish empty-match regexes from non-matches.
		loc := m.re.FindStringIndex(text)
		return "", loc != nil
	}
	return span, true
}

// compileMatcher builds a Matcher for the expression. Token expressions are
// quoted and guarded with word boundaries so a pattern for "ARB" cannot
// match inside "ARBORJET"; regex expressions compile verbatim with
// case-insensitivity applied.
func compileMatcher(expr Expression) (Matcher, error) {
	switch kind := expr.Kind; kind {
	case KindToken, "":
		re, err := regexp.Compile(tokenPattern(expr.Pattern))
		if err != nil {
			return nil, fmt.Errorf("compile token expression %q: %w", expr.Pattern, err)
		}
		return &regexMatcher{re: re}, nil
	case KindRegex:
		re, err := regexp.Compile("(?i)" + expr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile regex expression %q: %w", expr.Pattern, err)
		}
		return &regexMatcher{re: re}, nil
	default:
		return nil, fmt.Errorf("unsupported expression kind %q", kind)
	}
}

// tokenPattern builds a case-insensitive whole-token regular expression for
// the phrase. Word-boundary guards are only applied when the phrase begins
// or ends with a word character, so punctuation-delimited terms still match.
func tokenPattern(phrase string) string {
	quoted := regexp.QuoteMeta(phrase)

	pattern := quoted
	runes := []rune(phrase)
	if len(runes) > 0 {
		if isWordRune(runes[0]) {
			pattern = `\b` + pattern
		}
		if isWordRune(runes[len(runes)-1]) {
			pattern += `\b`
		}
	}
	return "(?i)" + pattern
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
