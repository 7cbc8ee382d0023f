package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nmoretto/tally/internal/evidence"
	"github.com/nmoretto/tally/internal/model"
	"github.com/nmoretto/tally/internal/risk"
	"github.com/nmoretto/tally/internal/rules"
)

const driftEvidenceLine = "Embedding drift detected vs historical merchant patterns"

// lookup carries the memory-index context gathered before any tier fires.
type lookup struct {
	match      *model.MerchantRecord
	vector     []float64
	similarity float64
	drift      bool
}

func (l lookup) matchName() string {
	if l.match == nil {
		return ""
	}
	return l.match.Name
}

func (l lookup) overrideCount() int {
	if l.match == nil {
		return 0
	}
	return l.match.OverrideCount
}

func (l lookup) unseen() bool {
	return l.match == nil
}

// Classify runs the full cascade for one raw expense description and
// persists the resulting audit record. The returned record is well-formed
// even when every model call failed; errors are reserved for persistence
// problems.
func (e *Engine) Classify(ctx context.Context, rawDescription string) (*model.DecisionRecord, error) {
	redacted, hadPII, piiFlags := e.redactor.Redact(rawDescription)
	clean := rules.Normalize(redacted)

	e.logger.Debug("starting classification",
		"merchant", clean,
		"had_pii", hadPII)

	look := e.lookupMerchant(ctx, clean)

	record := e.decide(ctx, redacted, clean, look, piiFlags)
	record.ID = uuid.New().String()
	record.CreatedAt = time.Now().UTC()
	record.RawDescription = rawDescription
	record.CleanDescription = clean
	record.HadPII = hadPII

	if err := e.storage.SaveDecision(ctx, record); err != nil {
		return record, fmt.Errorf("failed to persist decision: %w", err)
	}

	e.logger.Info("classified expense",
		"merchant", clean,
		"category", record.Category,
		"confidence", record.Confidence,
		"source", record.Source,
		"risk_score", record.RiskScore)

	return record, nil
}

// lookupMerchant embeds the cleaned description, feeds the drift detector,
// and scans merchant memory. Every failure degrades to an empty lookup.
func (e *Engine) lookupMerchant(ctx context.Context, clean string) lookup {
	var look lookup
	if e.embedder == nil || clean == "" {
		e.drift.Observe(nil)
		return look
	}

	vector, err := e.embedder.Embed(ctx, clean)
	if err != nil {
		e.logger.Warn("embedding unavailable", "merchant", clean, "error", err)
		vector = nil
	}
	look.vector = vector

	obs := e.drift.Observe(vector)
	look.drift = obs.Drift

	if vector == nil {
		return look
	}

	match, similarity, err := e.memory.FindSimilar(ctx, vector)
	if err != nil {
		e.logger.Warn("merchant memory lookup failed", "error", err)
		return look
	}
	look.match = match
	look.similarity = similarity
	return look
}

// decide walks the tiers in priority order and returns the first terminal
// decision.
func (e *Engine) decide(ctx context.Context, redacted, clean string, look lookup, piiFlags []string) *model.DecisionRecord {
	if record := e.humanVerifiedTier(look); record != nil {
		return record
	}
	if record := e.embeddingTier(look, piiFlags); record != nil {
		return record
	}
	if record := e.rulesTier(clean, look, piiFlags); record != nil {
		return record
	}
	return e.ensembleTier(ctx, redacted, clean, look, piiFlags)
}

// humanVerifiedTier fires when a human has already corrected a merchant
// that matches this input closely. Automation never re-litigates it.
func (e *Engine) humanVerifiedTier(look lookup) *model.DecisionRecord {
	match := look.match
	if match == nil || match.OverrideCount == 0 || match.CategoryLabel == "" {
		return nil
	}
	if look.similarity < e.cfg.SimilarityThreshold {
		return nil
	}

	assessment := risk.Score(risk.Signals{
		Confidence:    0.95,
		OverrideCount: match.OverrideCount,
	})

	return &model.DecisionRecord{
		Category:    match.CategoryLabel,
		Confidence:  0.95,
		Explanation: "Human-verified merchant override.",
		Source:      model.SourceHumanVerified,
		Evidence: model.EvidenceTrail{
			fmt.Sprintf("Human corrected merchant '%s'", match.Name),
			fmt.Sprintf("Embedding similarity %.2f", look.similarity),
			"Locked by human override",
		},
		RiskScore: assessment.Score,
		RiskFlags: assessment.Flags,
	}
}

// embeddingTier fires on a close match to a remembered merchant with a
// stored label, no human override required.
func (e *Engine) embeddingTier(look lookup, piiFlags []string) *model.DecisionRecord {
	match := look.match
	if match == nil || match.CategoryLabel == "" || look.similarity < e.cfg.SimilarityThreshold {
		return nil
	}

	trail := evidence.Build(evidence.Inputs{
		MatchedName:   match.Name,
		Similarity:    look.similarity,
		OverrideCount: match.OverrideCount,
		Source:        model.SourceEmbedding,
	})

	var extraFlags []string
	if look.drift {
		extraFlags = append(extraFlags, "embedding_drift_detected")
		trail = append(trail, driftEvidenceLine)
	}

	assessment := risk.Score(risk.Signals{
		Confidence:    0.9,
		OverrideCount: match.OverrideCount,
		UpstreamFlags: append(extraFlags, piiFlags...),
	})

	return &model.DecisionRecord{
		Category:    match.CategoryLabel,
		Confidence:  0.9,
		Explanation: "Embedding merchant match.",
		Source:      model.SourceEmbedding,
		Evidence:    trail,
		RiskScore:   assessment.Score,
		RiskFlags:   assessment.Flags,
	}
}

// rulesTier applies the deterministic keyword table. Ambiguity stops the
// cascade: conflicting rule matches are a data problem, not a model
// problem, so nothing escalates to the ensemble.
func (e *Engine) rulesTier(clean string, look lookup, piiFlags []string) *model.DecisionRecord {
	result := e.matcher.Match(clean)

	switch result.Status {
	case rules.Ambiguous:
		assessment := risk.Score(risk.Signals{
			Confidence:     0,
			UnseenMerchant: look.unseen(),
			OverrideCount:  look.overrideCount(),
			UpstreamFlags:  append([]string{"ambiguous_rules_match"}, piiFlags...),
		})

		return &model.DecisionRecord{
			Category:    model.NeedsReview,
			Confidence:  0,
			Explanation: "Multiple conflicting merchant matches detected",
			Source:      model.SourceRules,
			NeedsReview: true,
			Evidence: model.EvidenceTrail{
				"Rules engine detected multiple merchant matches mapping to different categories",
			},
			RiskScore: assessment.Score,
			RiskFlags: assessment.Flags,
		}

	case rules.Matched:
		trail := evidence.Build(evidence.Inputs{
			RuleKeyword:   result.Keyword,
			MatchedName:   look.matchName(),
			Similarity:    look.similarity,
			OverrideCount: look.overrideCount(),
			Source:        model.SourceRules,
		})

		assessment := risk.Score(risk.Signals{
			Confidence:     0.95,
			UnseenMerchant: look.unseen(),
			OverrideCount:  look.overrideCount(),
			UpstreamFlags:  piiFlags,
		})

		return &model.DecisionRecord{
			Category:    result.Category,
			Confidence:  0.95,
			Explanation: "Rule-based classification",
			Source:      model.SourceRules,
			Evidence:    trail,
			RiskScore:   assessment.Score,
			RiskFlags:   assessment.Flags,
		}
	}

	return nil
}

// ensembleTier is the last resort. It is also the only tier that teaches
// merchant memory, so the system keeps learning from genuinely novel
// merchants without ever touching human-corrected records.
func (e *Engine) ensembleTier(ctx context.Context, redacted, clean string, look lookup, piiFlags []string) *model.DecisionRecord {
	candidate, meta := e.resolver.Classify(ctx, redacted)

	ensembleMeta := &model.EnsembleMetadata{
		Reliability:    meta.Reliability,
		AgreementScore: meta.AgreementScore,
		SelfConsistent: meta.SelfConsistent,
		CrossModelUsed: meta.CrossModelUsed,
	}

	if candidate == nil {
		return &model.DecisionRecord{
			Category:    model.NeedsReview,
			Confidence:  0,
			Explanation: "All model calls failed",
			Source:      model.SourceLLM,
			NeedsReview: true,
			Evidence:    model.EvidenceTrail{},
			Ensemble:    ensembleMeta,
			RiskScore:   1.0,
			RiskFlags:   []string{"model_failure"},
		}
	}

	needsReview := candidate.Confidence < e.cfg.ConfidenceThreshold ||
		candidate.Category == model.NeedsReview

	trail := evidence.Build(evidence.Inputs{
		MatchedName:   look.matchName(),
		Similarity:    look.similarity,
		OverrideCount: look.overrideCount(),
		Source:        model.SourceLLM,
	})

	extraFlags := append(append([]string{}, meta.Flags...), piiFlags...)
	if look.drift {
		extraFlags = append(extraFlags, "embedding_drift_detected")
		trail = append(trail, driftEvidenceLine)
	}

	lowSim := look.match != nil && look.similarity < e.cfg.SimilarityThreshold

	assessment := risk.Score(risk.Signals{
		Confidence:     candidate.Confidence,
		LowSimilarity:  lowSim,
		UnseenMerchant: look.unseen(),
		OverrideCount:  look.overrideCount(),
		UpstreamFlags:  extraFlags,
	})

	if err := e.memory.Upsert(ctx, clean, look.vector, candidate.Category, false); err != nil {
		e.logger.Warn("merchant memory update failed", "merchant", clean, "error", err)
	}

	return &model.DecisionRecord{
		Category:    candidate.Category,
		Confidence:  candidate.Confidence,
		Explanation: candidate.Explanation,
		Source:      model.SourceLLM,
		NeedsReview: needsReview,
		Evidence:    trail,
		Ensemble:    ensembleMeta,
		RiskScore:   assessment.Score,
		RiskFlags:   assessment.Flags,
	}
}
