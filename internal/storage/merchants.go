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

// GetMerchant retrieves a merchant memory record by normalized name.
func (s *SQLiteStorage) GetMerchant(ctx context.Context, name string) (*model.MerchantRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var record model.MerchantRecord
	var embedding sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT name, category_label, embedding, times_seen, override_count, last_updated
		FROM merchants
		WHERE name = ?
	`, name).Scan(
		&record.Name,
		&record.CategoryLabel,
		&embedding,
		&record.TimesSeen,
		&record.OverrideCount,
		&record.LastUpdated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: merchant %q", common.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}

	if record.Embedding, err = decodeVector(embedding); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for %q: %w", name, err)
	}

	return &record, nil
}

// GetAllMerchants returns every merchant memory record. The memory index
// scans these exhaustively for similarity search.
func (s *SQLiteStorage) GetAllMerchants(ctx context.Context) ([]model.MerchantRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category_label, embedding, times_seen, override_count, last_updated
		FROM merchants
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.MerchantRecord
	for rows.Next() {
		var record model.MerchantRecord
		var embedding sql.NullString

		if err := rows.Scan(
			&record.Name,
			&record.CategoryLabel,
			&embedding,
			&record.TimesSeen,
			&record.OverrideCount,
			&record.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}

		if record.Embedding, err = decodeVector(embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %q: %w", record.Name, err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// SaveMerchant inserts or replaces a merchant memory record.
func (s *SQLiteStorage) SaveMerchant(ctx context.Context, record *model.MerchantRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchant(record); err != nil {
		return err
	}

	if record.LastUpdated.IsZero() {
		record.LastUpdated = time.Now().UTC()
	}

	embedding, err := encodeVector(record.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merchants (name, category_label, embedding, times_seen, override_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			category_label = excluded.category_label,
			embedding = excluded.embedding,
			times_seen = excluded.times_seen,
			override_count = excluded.override_count,
			last_updated = excluded.last_updated
	`, record.Name, record.CategoryLabel, embedding, record.TimesSeen, record.OverrideCount, record.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save merchant: %w", err)
	}

	return nil
}

// decodeVector parses a JSON-encoded embedding column. NULL and empty
// strings decode to a nil vector.
func decodeVector(column sql.NullString) ([]float64, error) {
	if !column.Valid || column.String == "" {
		return nil, nil
	}

	var vector []float64
	if err := json.Unmarshal([]byte(column.String), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// encodeVector serializes an embedding for storage. Nil vectors are
// stored as NULL.
func encodeVector(vector []float64) (any, error) {
	if vector == nil {
		return nil, nil
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
