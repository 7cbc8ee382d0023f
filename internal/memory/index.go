package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/model"
	"github.com/nmoretto/tally/internal/service"
)

// Index is the merchant memory: similarity search and guarded upsert over
// stored merchant embedding records. Mutation is serialized by a coarse
// lock; write concurrency is expected to be low, so simple beats clever.
type Index struct {
	storage service.Storage
	mu      sync.Mutex
}

// NewIndex creates a merchant memory index over the given storage.
func NewIndex(storage service.Storage) *Index {
	return &Index{storage: storage}
}

// FindSimilar scans every stored record and returns the single
// maximum-similarity one. It returns (nil, 0) when the index is empty or no
// record has positive similarity; callers treat both identically.
func (idx *Index) FindSimilar(ctx context.Context, vector []float64) (*model.MerchantRecord, float64, error) {
	records, err := idx.storage.GetAllMerchants(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load merchant memory: %w", err)
	}

	var best *model.MerchantRecord
	bestSim := 0.0

	for i := range records {
		sim := Cosine(records[i].Embedding, vector)
		if sim > bestSim {
			bestSim = sim
			best = &records[i]
		}
	}

	return best, bestSim, nil
}

// Upsert creates or refreshes the record for a normalized merchant name.
// TimesSeen always increments; OverrideCount increments only when the call
// is a human-confirmed correction. A stored label or vector is replaced
// only when a non-empty replacement is supplied, so a missing computation
// never overwrites good data.
func (idx *Index) Upsert(ctx context.Context, name string, vector []float64, category string, overridden bool) error {
	if name == "" {
		return fmt.Errorf("merchant name is required")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	record, err := idx.storage.GetMerchant(ctx, name)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to load merchant %q: %w", name, err)
	}

	if record == nil {
		overrides := 0
		if overridden {
			overrides = 1
		}
		record = &model.MerchantRecord{
			Name:          name,
			Embedding:     vector,
			CategoryLabel: category,
			TimesSeen:     1,
			OverrideCount: overrides,
		}
	} else {
		record.TimesSeen++
		if overridden {
			record.OverrideCount++
		}
		if category != "" {
			record.CategoryLabel = category
		}
		if len(vector) > 0 {
			record.Embedding = vector
		}
	}

	record.LastUpdated = time.Now().UTC()

	if err := idx.storage.SaveMerchant(ctx, record); err != nil {
		return fmt.Errorf("failed to save merchant %q: %w", name, err)
	}

	return nil
}
