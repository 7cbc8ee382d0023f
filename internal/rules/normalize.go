// Package rules provides deterministic text normalization and keyword-based
// merchant classification. Ambiguity in the rule table is escalated, never
// resolved by guessing: conflicting keyword matches are a data-quality
// problem for a human, not a model problem.
package rules

import (
	"regexp"
	"strings"
)

var (
	nonLetterRe  = regexp.MustCompile(`[^a-zA-Z\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize performs deterministic cleanup of a merchant description:
// case-fold, strip non-letters, collapse whitespace.
func Normalize(text string) string {
	t := strings.ToLower(text)
	t = nonLetterRe.ReplaceAllString(t, " ")
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
