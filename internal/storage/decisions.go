package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/model"
)

// SaveDecision appends one row to the decision audit log.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, record *model.DecisionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDecision(record); err != nil {
		return err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	evidence, err := json.Marshal(record.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}
	riskFlags, err := json.Marshal(record.RiskFlags)
	if err != nil {
		return fmt.Errorf("failed to encode risk flags: %w", err)
	}

	var ensemble any
	if record.Ensemble != nil {
		data, marshalErr := json.Marshal(record.Ensemble)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode ensemble metadata: %w", marshalErr)
		}
		ensemble = string(data)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, raw_description, clean_description, category, confidence,
			explanation, source, needs_review, had_pii, evidence,
			risk_score, risk_flags, ensemble, overridden, override_category,
			override_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.RawDescription, record.CleanDescription, record.Category, record.Confidence,
		record.Explanation, string(record.Source), record.NeedsReview, record.HadPII, string(evidence),
		record.RiskScore, string(riskFlags), ensemble, record.Overridden, nullableString(record.OverrideCategory),
		record.OverrideAt, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}

	return nil
}

// GetDecision retrieves one audit log row by id.
func (s *SQLiteStorage) GetDecision(ctx context.Context, id string) (*model.DecisionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, decisionColumns+`
		FROM decisions
		WHERE id = ?
	`, id)

	record, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: decision %q", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetRecentDecisions returns the newest audit log rows, newest first.
func (s *SQLiteStorage) GetRecentDecisions(ctx context.Context, limit int) ([]model.DecisionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, decisionColumns+`
		FROM decisions
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DecisionRecord
	for rows.Next() {
		record, scanErr := scanDecision(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// MarkDecisionCorrected records a one-shot human correction on an audit
// row. A row can be corrected exactly once; a second attempt returns
// common.ErrAlreadyCorrected.
func (s *SQLiteStorage) MarkDecisionCorrected(ctx context.Context, id, category string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions
		SET overridden = 1, override_category = ?, override_at = ?
		WHERE id = ? AND overridden = 0
	`, category, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark decision corrected: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM decisions WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check decision existence: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: decision %q", common.ErrAlreadyCorrected, id)
		}
		return fmt.Errorf("%w: decision %q", common.ErrNotFound, id)
	}

	return nil
}

const decisionColumns = `
		SELECT id, raw_description, clean_description, category, confidence,
			explanation, source, needs_review, had_pii, evidence,
			risk_score, risk_flags, ensemble, overridden, override_category,
			override_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*model.DecisionRecord, error) {
	var record model.DecisionRecord
	var explanation, evidence, riskFlags, ensemble, overrideCategory sql.NullString
	var overrideAt sql.NullTime
	var source string

	err := row.Scan(
		&record.ID, &record.RawDescription, &record.CleanDescription, &record.Category, &record.Confidence,
		&explanation, &source, &record.NeedsReview, &record.HadPII, &evidence,
		&record.RiskScore, &riskFlags, &ensemble, &record.Overridden, &overrideCategory,
		&overrideAt, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan decision: %w", err)
	}

	record.Source = model.DecisionSource(source)
	record.Explanation = explanation.String
	record.OverrideCategory = overrideCategory.String
	if overrideAt.Valid {
		t := overrideAt.Time
		record.OverrideAt = &t
	}

	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &record.Evidence); err != nil {
			return nil, fmt.Errorf("failed to decode evidence: %w", err)
		}
	}
	if riskFlags.Valid && riskFlags.String != "" {
		if err := json.Unmarshal([]byte(riskFlags.String), &record.RiskFlags); err != nil {
			return nil, fmt.Errorf("failed to decode risk flags: %w", err)
		}
	}
	if ensemble.Valid && ensemble.String != "" {
		record.Ensemble = &model.EnsembleMetadata{}
		if err := json.Unmarshal([]byte(ensemble.String), record.Ensemble); err != nil {
			return nil, fmt.Errorf("failed to decode ensemble metadata: %w", err)
		}
	}

	return &record, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
