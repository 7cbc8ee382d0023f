package engine

import (
	"context"

	"github.com/nmoretto/tally/internal/model"
	"github.com/nmoretto/tally/internal/rules"
)

// Counterfactual reports what the deterministic tiers would do for a
// description without classifying it. It makes no model calls, persists
// nothing, and teaches nothing, so it is safe to run against production
// state while tuning the rule table or inspecting merchant memory.
type Counterfactual struct {
	CleanDescription string
	MatchName        string
	MatchLabel       string
	RuleCategory     string
	RuleKeyword      string
	PredictedSource  model.DecisionSource
	Similarity       float64
	OverrideCount    int
	HadPII           bool
	RuleAmbiguous    bool
}

// Probe runs the read-only portion of the cascade for one description.
func (e *Engine) Probe(ctx context.Context, rawDescription string) (*Counterfactual, error) {
	redacted, hadPII, _ := e.redactor.Redact(rawDescription)
	clean := rules.Normalize(redacted)

	probe := &Counterfactual{
		CleanDescription: clean,
		HadPII:           hadPII,
		PredictedSource:  model.SourceLLM,
	}

	if e.embedder != nil && clean != "" {
		if vector, err := e.embedder.Embed(ctx, clean); err == nil && vector != nil {
			match, similarity, lookupErr := e.memory.FindSimilar(ctx, vector)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if match != nil {
				probe.MatchName = match.Name
				probe.MatchLabel = match.CategoryLabel
				probe.Similarity = similarity
				probe.OverrideCount = match.OverrideCount
			}
		} else if err != nil {
			e.logger.Warn("embedding unavailable", "merchant", clean, "error", err)
		}
	}

	result := e.matcher.Match(clean)
	switch result.Status {
	case rules.Ambiguous:
		probe.RuleAmbiguous = true
	case rules.Matched:
		probe.RuleCategory = result.Category
		probe.RuleKeyword = result.Keyword
	}

	probe.PredictedSource = e.predictSource(probe)
	return probe, nil
}

func (e *Engine) predictSource(probe *Counterfactual) model.DecisionSource {
	if probe.MatchLabel != "" && probe.Similarity >= e.cfg.SimilarityThreshold {
		if probe.OverrideCount > 0 {
			return model.SourceHumanVerified
		}
		return model.SourceEmbedding
	}
	if probe.RuleAmbiguous || probe.RuleCategory != "" {
		return model.SourceRules
	}
	return model.SourceLLM
}
