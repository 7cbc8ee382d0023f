package ensemble

import (
	"fmt"
	"strings"
)

// SystemPrompt renders the classification instructions with the
// configured category whitelist baked in. Providers send it as the
// system turn on every call.
func SystemPrompt(categories []string) string {
	list := make([]string, len(categories))
	for i, c := range categories {
		list[i] = fmt.Sprintf("- %s", c)
	}

	return fmt.Sprintf(`You are a responsible bookkeeping AI.

Choose ONE category from:
%s

Rules:
- Return ONLY a valid JSON object, no prose and no markdown fencing
- Fields: category, confidence, explanation
- confidence must be between 0.0 and 1.0
- If unsure, use category "Needs Review" with confidence 0.2 or lower`,
		strings.Join(list, "\n"))
}

// buildUserPrompt wraps the expense description for the model.
func buildUserPrompt(description string) string {
	return fmt.Sprintf("Description: %s", description)
}
