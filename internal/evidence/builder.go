// Package evidence assembles the ordered human-readable justification
// trail attached to every decision.
package evidence

import (
	"fmt"

	"github.com/nmoretto/tally/internal/model"
)

// Inputs carries the facts available to the builder after the cascade
// has resolved. Zero-valued fields simply contribute no statement.
type Inputs struct {
	RuleKeyword   string
	MatchedName   string
	Similarity    float64
	OverrideCount int
	Source        model.DecisionSource
}

// Build renders the evidence trail in fixed order: rule match, embedding
// similarity, override history, then source attribution. The result is
// never nil.
func Build(in Inputs) model.EvidenceTrail {
	trail := model.EvidenceTrail{}

	if in.RuleKeyword != "" {
		trail = append(trail, fmt.Sprintf("Matched rule token '%s'", in.RuleKeyword))
	}
	if in.MatchedName != "" && in.Similarity > 0 {
		trail = append(trail, fmt.Sprintf("Embedding similarity %.2f to '%s'", in.Similarity, in.MatchedName))
	}
	if in.OverrideCount > 0 {
		trail = append(trail, fmt.Sprintf("Previously overridden %d times", in.OverrideCount))
	}
	if stmt := sourceStatement(in.Source); stmt != "" {
		trail = append(trail, stmt)
	}

	return trail
}

func sourceStatement(source model.DecisionSource) string {
	switch source {
	case model.SourceHumanVerified, model.SourceEmbedding, model.SourceRules, model.SourceLLM:
		return fmt.Sprintf("Confirmed by %s", source)
	case "":
		return ""
	default:
		return fmt.Sprintf("Decision made via %s", source)
	}
}
