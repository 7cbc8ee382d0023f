package rules

import (
	"sort"
	"strings"
)

// Status is the outcome of a rule lookup.
type Status int

const (
	// NoMatch means no keyword in the table appeared in the text.
	NoMatch Status = iota
	// Matched means every matching keyword agreed on one category.
	Matched
	// Ambiguous means matching keywords spanned more than one category.
	Ambiguous
)

// Result carries the matched category and the keyword that won. Keyword is
// the longest matching keyword, so a more specific phrase ("uber eats")
// beats a shorter substring it contains ("uber").
type Result struct {
	Category string
	Keyword  string
	Status   Status
}

// Matcher looks up normalized text against a fixed keyword→category table.
type Matcher struct {
	table    map[string]string
	keywords []string
}

// DefaultTable returns the built-in merchant keyword table.
func DefaultTable() map[string]string {
	return map[string]string{
		"uber":              "Travel",
		"lyft":              "Travel",
		"delta":             "Travel",
		"united":            "Travel",
		"american airlines": "Travel",
		"starbucks":         "Meals & Entertainment",
		"mcdonald":          "Meals & Entertainment",
		"ubereats":          "Meals & Entertainment",
		"uber eats":         "Meals & Entertainment",
		"dropbox":           "Software / SaaS",
		"atlassian":         "Software / SaaS",
		"slack":             "Software / SaaS",
		"spotify":           "Subscriptions",
		"netflix":           "Subscriptions",
		"verizon":           "Utilities",
		"t mobile":          "Utilities",
		"comcast":           "Utilities",
	}
}

// NewMatcher creates a matcher over the given table. A nil table uses
// DefaultTable. Keywords are pre-sorted longest first so the most specific
// phrase is always considered before any substring of it.
func NewMatcher(table map[string]string) *Matcher {
	if table == nil {
		table = DefaultTable()
	}

	keywords := make([]string, 0, len(table))
	for k := range table {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if len(keywords[i]) != len(keywords[j]) {
			return len(keywords[i]) > len(keywords[j])
		}
		return keywords[i] < keywords[j]
	})

	return &Matcher{table: table, keywords: keywords}
}

// Match collects every keyword contained in the normalized text, longest
// first. A shorter keyword that is a substring of an already-matched longer
// keyword is suppressed, so "uber eats" wins over "uber" rather than
// conflicting with it. If the surviving matches still span more than one
// distinct category the result is Ambiguous; the matcher never silently
// picks one. If all matches agree, that single category is returned
// regardless of how many keywords hit.
func (m *Matcher) Match(text string) Result {
	t := strings.ToLower(text)

	var matched []string
	var categories []string

	for _, keyword := range m.keywords {
		if !strings.Contains(t, keyword) {
			continue
		}
		shadowed := false
		for _, longer := range matched {
			if strings.Contains(longer, keyword) {
				shadowed = true
				break
			}
		}
		if shadowed {
			continue
		}
		matched = append(matched, keyword)
		categories = append(categories, m.table[keyword])
	}

	if len(categories) == 0 {
		return Result{Status: NoMatch}
	}

	for _, c := range categories[1:] {
		if c != categories[0] {
			return Result{Status: Ambiguous, Keyword: matched[0]}
		}
	}

	return Result{Status: Matched, Category: categories[0], Keyword: matched[0]}
}
