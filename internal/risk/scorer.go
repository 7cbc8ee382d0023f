// Package risk scores how much human attention a finished decision
// deserves. Scoring is additive over independent signals and never
// alters the decision itself.
package risk

import (
	"math"

	"github.com/nmoretto/tally/internal/model"
)

// Signals carries the upstream facts the scorer evaluates. Zero value
// means "nothing suspicious".
type Signals struct {
	UpstreamFlags  []string
	Confidence     float64
	OverrideCount  int
	LowSimilarity  bool
	UnseenMerchant bool
}

const (
	flagLowConfidence  = "low_confidence"
	flagLowSimilarity  = "low_embedding_similarity"
	flagUnseenMerchant = "unseen_merchant"
	flagHighOverrides  = "high_override_rate"

	perUpstreamFlagWeight = 0.1
)

// Score computes the additive risk assessment for one decision. The
// returned flag list merges scorer flags with de-duplicated upstream
// flags, and the score is clamped to [0, 1].
func Score(sig Signals) model.RiskAssessment {
	var score float64
	flags := []string{}
	seen := map[string]bool{}

	add := func(flag string, weight float64) {
		score += weight
		if !seen[flag] {
			seen[flag] = true
			flags = append(flags, flag)
		}
	}

	if sig.Confidence < 0.5 {
		add(flagLowConfidence, 0.4)
	}
	if sig.LowSimilarity {
		add(flagLowSimilarity, 0.2)
	}
	if sig.UnseenMerchant {
		add(flagUnseenMerchant, 0.2)
	}
	if sig.OverrideCount > 1 {
		add(flagHighOverrides, 0.2)
	}

	for _, flag := range sig.UpstreamFlags {
		score += perUpstreamFlagWeight
		if !seen[flag] {
			seen[flag] = true
			flags = append(flags, flag)
		}
	}

	return model.RiskAssessment{
		Score: math.Min(math.Max(score, 0), 1),
		Flags: flags,
	}
}
