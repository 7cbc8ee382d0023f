package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/model"
)

// Correct applies a one-shot human correction to a persisted decision.
// The audit row records the override exactly once; a second correction on
// the same decision returns common.ErrAlreadyCorrected. The merchant
// memory record is relabeled and its override counter incremented, which
// arms the human-verified lock for future sightings of this merchant.
func (e *Engine) Correct(ctx context.Context, decisionID, category string) (*model.DecisionRecord, error) {
	if !e.allowedCategory(category) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCategory, category)
	}

	record, err := e.storage.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	if err := e.storage.MarkDecisionCorrected(ctx, decisionID, category, at); err != nil {
		return nil, err
	}

	if record.CleanDescription != "" {
		if err := e.memory.Upsert(ctx, record.CleanDescription, nil, category, true); err != nil {
			e.logger.Warn("merchant memory update failed after correction",
				"merchant", record.CleanDescription,
				"error", err)
		}
	}

	e.logger.Info("decision corrected",
		"decision_id", decisionID,
		"previous_category", record.Category,
		"category", category)

	record.Overridden = true
	record.OverrideCategory = category
	record.OverrideAt = &at
	return record, nil
}
