package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/ensemble"
	"github.com/nmoretto/tally/internal/guardrail"
	"github.com/nmoretto/tally/internal/model"
	"github.com/nmoretto/tally/internal/pii"
	"github.com/nmoretto/tally/internal/rules"
	"github.com/nmoretto/tally/internal/service"
)

var testCategories = []string{
	"Travel", "Meals & Entertainment", "Software / SaaS", "Utilities",
	"Other Expenses", model.NeedsReview,
}

// fakeStorage is an in-memory service.Storage for engine tests.
type fakeStorage struct {
	mu        sync.Mutex
	merchants map[string]model.MerchantRecord
	decisions map[string]model.DecisionRecord
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		merchants: make(map[string]model.MerchantRecord),
		decisions: make(map[string]model.DecisionRecord),
	}
}

func (f *fakeStorage) GetMerchant(_ context.Context, name string) (*model.MerchantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.merchants[name]
	if !ok {
		return nil, fmt.Errorf("%w: merchant %q", common.ErrNotFound, name)
	}
	return &record, nil
}

func (f *fakeStorage) GetAllMerchants(_ context.Context) ([]model.MerchantRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.merchants))
	for name := range f.merchants {
		names = append(names, name)
	}
	sort.Strings(names)
	records := make([]model.MerchantRecord, 0, len(names))
	for _, name := range names {
		records = append(records, f.merchants[name])
	}
	return records, nil
}

func (f *fakeStorage) SaveMerchant(_ context.Context, record *model.MerchantRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merchants[record.Name] = *record
	return nil
}

func (f *fakeStorage) SaveDecision(_ context.Context, record *model.DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[record.ID] = *record
	return nil
}

func (f *fakeStorage) GetDecision(_ context.Context, id string) (*model.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.decisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: decision %q", common.ErrNotFound, id)
	}
	return &record, nil
}

func (f *fakeStorage) GetRecentDecisions(_ context.Context, limit int) ([]model.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]model.DecisionRecord, 0, len(f.decisions))
	for _, record := range f.decisions {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (f *fakeStorage) MarkDecisionCorrected(_ context.Context, id, category string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.decisions[id]
	if !ok {
		return fmt.Errorf("%w: decision %q", common.ErrNotFound, id)
	}
	if record.Overridden {
		return fmt.Errorf("%w: decision %q", common.ErrAlreadyCorrected, id)
	}
	record.Overridden = true
	record.OverrideCategory = category
	record.OverrideAt = &at
	f.decisions[id] = record
	return nil
}

func (f *fakeStorage) Migrate(_ context.Context) error { return nil }
func (f *fakeStorage) Close() error                    { return nil }

// stubEmbedder returns canned vectors keyed by cleaned text, falling back
// to a default vector.
type stubEmbedder struct {
	vectors map[string][]float64
	vector  []float64
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if v, ok := s.vectors[text]; ok {
		return v, s.err
	}
	return s.vector, s.err
}

// stubResolver returns a canned ensemble outcome.
type stubResolver struct {
	candidate *guardrail.Candidate
	meta      ensemble.Metadata
	calls     int
}

func (s *stubResolver) Classify(_ context.Context, _ string) (*guardrail.Candidate, ensemble.Metadata) {
	s.calls++
	return s.candidate, s.meta
}

type engineFixture struct {
	storage  *fakeStorage
	resolver *stubResolver
	engine   *Engine
}

func newFixture(t *testing.T, embedder *stubEmbedder, resolver *stubResolver) *engineFixture {
	t.Helper()
	storage := newFakeStorage()
	if resolver == nil {
		resolver = &stubResolver{meta: ensemble.Metadata{
			Reliability:    model.ReliabilityLow,
			CrossModelUsed: true,
			Flags:          []string{"all_model_calls_failed"},
		}}
	}

	var embProvider service.EmbeddingProvider
	if embedder != nil {
		embProvider = embedder
	}

	eng := New(
		storage,
		rules.NewMatcher(rules.DefaultTable()),
		resolver,
		embProvider,
		pii.NewRedactor(),
		nil,
		DefaultConfig(testCategories),
		nil,
	)
	return &engineFixture{storage: storage, resolver: resolver, engine: eng}
}

func TestClassifyRuleMatch(t *testing.T) {
	fix := newFixture(t, nil, nil)

	record, err := fix.engine.Classify(context.Background(), "Uber ride downtown")
	require.NoError(t, err)

	assert.Equal(t, "Travel", record.Category)
	assert.Equal(t, 0.95, record.Confidence)
	assert.Equal(t, model.SourceRules, record.Source)
	assert.False(t, record.NeedsReview)
	assert.Contains(t, record.Evidence, "Matched rule token 'uber'")
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 0, fix.resolver.calls, "rule match must not escalate to the ensemble")

	saved, err := fix.storage.GetDecision(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Travel", saved.Category)
	assert.Empty(t, fix.storage.merchants, "rule decisions do not teach merchant memory")
}

func TestClassifyAmbiguousRulesNeedsReview(t *testing.T) {
	fix := newFixture(t, nil, nil)

	record, err := fix.engine.Classify(context.Background(), "uber lunch at starbucks")
	require.NoError(t, err)

	assert.Equal(t, model.NeedsReview, record.Category)
	assert.Equal(t, 0.0, record.Confidence)
	assert.Equal(t, model.SourceRules, record.Source)
	assert.True(t, record.NeedsReview)
	assert.Contains(t, record.RiskFlags, "ambiguous_rules_match")
	assert.Equal(t, 0, fix.resolver.calls, "ambiguity must not escalate to the ensemble")
}

func TestClassifyHumanVerifiedLockDominatesRules(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{1, 0, 0}}
	fix := newFixture(t, embedder, nil)

	require.NoError(t, fix.storage.SaveMerchant(context.Background(), &model.MerchantRecord{
		Name:          "uber ride downtown",
		CategoryLabel: "Software / SaaS",
		Embedding:     []float64{1, 0, 0},
		TimesSeen:     4,
		OverrideCount: 2,
	}))

	record, err := fix.engine.Classify(context.Background(), "uber ride downtown")
	require.NoError(t, err)

	assert.Equal(t, "Software / SaaS", record.Category)
	assert.Equal(t, 0.95, record.Confidence)
	assert.Equal(t, model.SourceHumanVerified, record.Source)
	assert.False(t, record.NeedsReview)
	assert.Contains(t, record.Evidence, "Locked by human override")
	assert.Contains(t, record.RiskFlags, "high_override_rate")
}

func TestClassifyEmbeddingMatch(t *testing.T) {
	embedder := &stubEmbedder{vector: []float64{0, 1, 0}}
	fix := newFixture(t, embedder, nil)

	require.NoError(t, fix.storage.SaveMerchant(context.Background(), &model.MerchantRecord{
		Name:          "datadog monitoring",
		CategoryLabel: "Software / SaaS",
		Embedding:     []float64{0, 1, 0},
		TimesSeen:     2,
	}))

	record, err := fix.engine.Classify(context.Background(), "datadog monitoring invoice 5521")
	require.NoError(t, err)

	assert.Equal(t, "Software / SaaS", record.Category)
	assert.Equal(t, 0.9, record.Confidence)
	assert.Equal(t, model.SourceEmbedding, record.Source)
	assert.Contains(t, record.Evidence, "Embedding similarity 1.00 to 'datadog monitoring'")
}

func TestClassifyEnsembleFallbackLearns(t *testing.T) {
	resolver := &stubResolver{
		candidate: &guardrail.Candidate{
			Category:    "Other Expenses",
			Confidence:  0.7,
			Explanation: "unrecognized vendor",
		},
		meta: ensemble.Metadata{
			Reliability:    model.ReliabilityHigh,
			AgreementScore: 1.0,
			SelfConsistent: true,
		},
	}
	fix := newFixture(t, nil, resolver)

	record, err := fix.engine.Classify(context.Background(), "Mystery Shop 42")
	require.NoError(t, err)

	assert.Equal(t, "Other Expenses", record.Category)
	assert.Equal(t, model.SourceLLM, record.Source)
	assert.False(t, record.NeedsReview)
	require.NotNil(t, record.Ensemble)
	assert.True(t, record.Ensemble.SelfConsistent)
	assert.Contains(t, record.RiskFlags, "unseen_merchant")

	learned, err := fix.storage.GetMerchant(context.Background(), "mystery shop")
	require.NoError(t, err)
	assert.Equal(t, "Other Expenses", learned.CategoryLabel)
	assert.Equal(t, 1, learned.TimesSeen)
	assert.Equal(t, 0, learned.OverrideCount, "automated learning never increments overrides")
}

func TestClassifyLowConfidenceNeedsReview(t *testing.T) {
	resolver := &stubResolver{
		candidate: &guardrail.Candidate{Category: "Utilities", Confidence: 0.5},
		meta:      ensemble.Metadata{Reliability: model.ReliabilityLow, CrossModelUsed: true},
	}
	fix := newFixture(t, nil, resolver)

	record, err := fix.engine.Classify(context.Background(), "acme holdings llc")
	require.NoError(t, err)

	assert.Equal(t, "Utilities", record.Category)
	assert.True(t, record.NeedsReview)
	assert.Contains(t, record.RiskFlags, "low_confidence")
}

func TestClassifyTotalModelFailure(t *testing.T) {
	fix := newFixture(t, nil, nil)

	record, err := fix.engine.Classify(context.Background(), "acme holdings llc")
	require.NoError(t, err)

	assert.Equal(t, model.NeedsReview, record.Category)
	assert.Equal(t, 0.0, record.Confidence)
	assert.Equal(t, model.SourceLLM, record.Source)
	assert.True(t, record.NeedsReview)
	assert.Equal(t, 1.0, record.RiskScore)
	assert.Equal(t, []string{"model_failure"}, record.RiskFlags)
	assert.NotNil(t, record.Evidence)
}

func TestClassifyRedactsPII(t *testing.T) {
	fix := newFixture(t, nil, nil)

	record, err := fix.engine.Classify(context.Background(), "uber receipt help@uber.com")
	require.NoError(t, err)

	assert.True(t, record.HadPII)
	assert.Equal(t, "uber receipt", record.CleanDescription)
	assert.Equal(t, "uber receipt help@uber.com", record.RawDescription)
}

func TestCorrectOneShot(t *testing.T) {
	resolver := &stubResolver{
		candidate: &guardrail.Candidate{Category: "Other Expenses", Confidence: 0.7},
	}
	fix := newFixture(t, nil, resolver)
	ctx := context.Background()

	record, err := fix.engine.Classify(ctx, "mystery shop 42")
	require.NoError(t, err)

	corrected, err := fix.engine.Correct(ctx, record.ID, "Meals & Entertainment")
	require.NoError(t, err)
	assert.True(t, corrected.Overridden)
	assert.Equal(t, "Meals & Entertainment", corrected.OverrideCategory)

	merchant, err := fix.storage.GetMerchant(ctx, "mystery shop")
	require.NoError(t, err)
	assert.Equal(t, "Meals & Entertainment", merchant.CategoryLabel)
	assert.Equal(t, 1, merchant.OverrideCount)

	_, err = fix.engine.Correct(ctx, record.ID, "Travel")
	assert.ErrorIs(t, err, common.ErrAlreadyCorrected)
}

func TestCorrectRejectsUnknownCategory(t *testing.T) {
	fix := newFixture(t, nil, nil)

	_, err := fix.engine.Correct(context.Background(), "any-id", "Crypto Trading")
	assert.ErrorIs(t, err, common.ErrUnknownCategory)
}

func TestProbePredictsTier(t *testing.T) {
	embedder := &stubEmbedder{
		vectors: map[string][]float64{"github monthly bill": {1, 0}},
		vector:  []float64{0, 1},
	}
	fix := newFixture(t, embedder, nil)
	ctx := context.Background()

	require.NoError(t, fix.storage.SaveMerchant(ctx, &model.MerchantRecord{
		Name:          "github",
		CategoryLabel: "Software / SaaS",
		Embedding:     []float64{1, 0},
		TimesSeen:     3,
	}))

	probe, err := fix.engine.Probe(ctx, "github monthly bill")
	require.NoError(t, err)
	assert.Equal(t, model.SourceEmbedding, probe.PredictedSource)
	assert.Equal(t, "github", probe.MatchName)

	probe, err = fix.engine.Probe(ctx, "totally unknown vendor")
	require.NoError(t, err)
	assert.Equal(t, model.SourceLLM, probe.PredictedSource)
	assert.Equal(t, 0, fix.resolver.calls, "probe must not call models")
}
