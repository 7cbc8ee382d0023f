package config

import "github.com/nmoretto/tally/internal/model"

// DefaultCategories is the built-in accounting category whitelist. It can
// be overridden through configuration, but "Needs Review" must always
// remain a member so every tier has a safe fallback.
func DefaultCategories() []string {
	return []string{
		"Travel",
		"Meals & Entertainment",
		"Software / SaaS",
		"Office Supplies",
		"Utilities",
		"Subscriptions",
		"Income",
		"Rent",
		"Contractors",
		"Advertising & Marketing",
		"Other Expenses",
		model.NeedsReview,
	}
}

// EnsureNeedsReview returns categories with the "Needs Review" fallback
// appended if it is missing.
func EnsureNeedsReview(categories []string) []string {
	for _, c := range categories {
		if c == model.NeedsReview {
			return categories
		}
	}
	return append(categories, model.NeedsReview)
}
