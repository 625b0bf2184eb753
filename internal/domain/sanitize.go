package domain

import (
	"regexp"
	"strings"
)

// Sanitizer strips internal codenames, vendor/model identifiers, and
// infrastructure terms from reply text before it leaves the router. Plain
// substitution, no escaping semantics; runs exactly once per response, after
// the final text is assembled.
type Sanitizer struct {
	patterns []*regexp.Regexp
	ws       *regexp.Regexp
}

// defaultBlockedPatterns are case-insensitive regular expressions for terms
// that must never leak to an end user.
var defaultBlockedPatterns = []string{
	`codename EDITH`,
	`Brain [1-4]`,
	`Tri-Brain`,
	`Quad-Brain`,
	`\bollama\b`,
	`qwen2\.5[^\s]*`,
	`\bOpenRouter\b`,
	`kimi-k2[^\s]*`,
	`\bMoonshot\b`,
	`edith-bridge`,
}

// NewSanitizer compiles the given patterns case-insensitively. Patterns that
// fail to compile are treated as literal strings.
func NewSanitizer(patterns []string) *Sanitizer {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			re = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p))
		}
		compiled = append(compiled, re)
	}

	return &Sanitizer{
		patterns: compiled,
		ws:       regexp.MustCompile(`\s{2,}`),
	}
}

// DefaultSanitizer returns a sanitizer with the stock blocklist.
func DefaultSanitizer() *Sanitizer {
	return NewSanitizer(defaultBlockedPatterns)
}

// Clean removes every blocked term, collapses the whitespace runs the
// removals leave behind, and trims. Idempotent.
func (s *Sanitizer) Clean(text string) string {
	for _, re := range s.patterns {
		text = re.ReplaceAllString(text, "")
	}
	text = s.ws.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
