package ensemble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoretto/tally/internal/guardrail"
	"github.com/nmoretto/tally/internal/model"
)

var testCategories = []string{"Travel", "Meals & Entertainment", "Utilities", model.NeedsReview}

type stubResult struct {
	out string
	err error
}

// stubProvider returns canned output keyed by call temperature so that
// concurrent dispatch stays deterministic.
type stubProvider struct {
	name    string
	results map[float64]stubResult

	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, _ string, temperature float64) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	res, ok := s.results[temperature]
	if !ok {
		return "", errors.New("unexpected temperature")
	}
	return res.out, res.err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func payload(category string, confidence float64) string {
	return fmt.Sprintf(`{"category": %q, "confidence": %v, "explanation": "test"}`, category, confidence)
}

func newTestResolver(t *testing.T, primary, secondary *stubProvider) *Resolver {
	t.Helper()
	r := NewResolver(primary, secondary, guardrail.NewValidator(testCategories), DefaultConfig(), nil)
	t.Cleanup(r.Close)
	return r
}

func TestClassifySelfConsistentPrimary(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.9)},
		0.3: {out: payload("Travel", 0.85)},
	}}
	secondary := &stubProvider{name: "anthropic"}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "delta flight atl")

	require.NotNil(t, candidate)
	assert.Equal(t, "Travel", candidate.Category)
	assert.InDelta(t, 0.9, candidate.Confidence, 1e-9)
	assert.True(t, meta.SelfConsistent)
	assert.False(t, meta.CrossModelUsed)
	assert.Equal(t, 1.0, meta.AgreementScore)
	assert.Equal(t, model.ReliabilityHigh, meta.Reliability)
	assert.Empty(t, meta.Flags)
	assert.Equal(t, 0, secondary.callCount(), "secondary tier must not be consulted")
}

func TestClassifyPrimaryDisagreementEscalates(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.9)},
		0.3: {out: payload("Utilities", 0.5)},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.8)},
		0.3: {out: payload("Travel", 0.75)},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "comed monthly bill")

	require.NotNil(t, candidate)
	assert.Equal(t, "Travel", candidate.Category)
	assert.InDelta(t, 0.8, candidate.Confidence, 1e-9)
	assert.True(t, meta.SelfConsistent)
	assert.True(t, meta.CrossModelUsed)
	assert.Equal(t, 0.75, meta.AgreementScore)
	assert.Equal(t, model.ReliabilityMedium, meta.Reliability)
	assert.Contains(t, meta.Flags, "model_disagreement")
	assert.Contains(t, meta.Flags, "high_confidence_variance")
	assert.Contains(t, meta.Flags, "openai_self_inconsistent")
	assert.Equal(t, 2, secondary.callCount())
}

func TestClassifySmallDisagreementSkipsVarianceFlag(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.7)},
		0.3: {out: payload("Utilities", 0.6)},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {out: payload("Utilities", 0.9)},
		0.3: {out: payload("Utilities", 0.88)},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "city water and power")

	require.NotNil(t, candidate)
	assert.Equal(t, "Utilities", candidate.Category)
	assert.Contains(t, meta.Flags, "model_disagreement")
	assert.NotContains(t, meta.Flags, "high_confidence_variance")
	assert.Equal(t, 0.75, meta.AgreementScore)
}

func TestClassifyPartialPrimaryFallsBackWhenSecondaryFails(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {out: payload("Meals & Entertainment", 0.7)},
		0.3: {err: errors.New("timeout")},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {err: errors.New("overloaded")},
		0.3: {err: errors.New("overloaded")},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "chipotle team lunch")

	require.NotNil(t, candidate)
	assert.Equal(t, "Meals & Entertainment", candidate.Category)
	assert.False(t, meta.SelfConsistent)
	assert.True(t, meta.CrossModelUsed)
	assert.Equal(t, 1.0, meta.AgreementScore)
	assert.Equal(t, model.ReliabilityLow, meta.Reliability)
	assert.Equal(t, []string{"partial_openai_response"}, meta.Flags)
}

func TestClassifySecondaryInconsistentPicksHighestConfidence(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {err: errors.New("timeout")},
		0.3: {err: errors.New("timeout")},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.6)},
		0.3: {out: payload("Utilities", 0.82)},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "airport parking garage")

	require.NotNil(t, candidate)
	assert.Equal(t, "Utilities", candidate.Category)
	assert.False(t, meta.SelfConsistent)
	assert.True(t, meta.CrossModelUsed)
	assert.Equal(t, 0.5, meta.AgreementScore)
	assert.Equal(t, model.ReliabilityLow, meta.Reliability)
	assert.Contains(t, meta.Flags, "anthropic_self_inconsistent")
	assert.NotContains(t, meta.Flags, "model_disagreement")
}

func TestClassifyAllCallsFailed(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {err: errors.New("down")},
		0.3: {err: errors.New("down")},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {err: errors.New("down")},
		0.3: {err: errors.New("down")},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "mystery charge")

	assert.Nil(t, candidate)
	assert.True(t, meta.CrossModelUsed)
	assert.Equal(t, model.ReliabilityLow, meta.Reliability)
	assert.Equal(t, []string{"all_model_calls_failed"}, meta.Flags)
}

func TestClassifyGuardrailFlagsPropagate(t *testing.T) {
	primary := &stubProvider{name: "openai", results: map[float64]stubResult{
		0.2: {out: "definitely travel, trust me"},
		0.3: {out: payload("Travel", 0.8)},
	}}
	secondary := &stubProvider{name: "anthropic", results: map[float64]stubResult{
		0.2: {out: payload("Travel", 0.85)},
		0.3: {out: payload("Travel", 0.8)},
	}}

	resolver := newTestResolver(t, primary, secondary)
	candidate, meta := resolver.Classify(context.Background(), "amtrak ticket nyc")

	require.NotNil(t, candidate)
	assert.Equal(t, "Travel", candidate.Category)
	assert.Contains(t, meta.Flags, guardrail.FlagParseError)
	assert.Contains(t, meta.Flags, "partial_openai_response")
	assert.True(t, meta.SelfConsistent)
}

func TestAgreementScoreRounding(t *testing.T) {
	candidates := []*guardrail.Candidate{
		{Category: "Travel"},
		{Category: "Travel"},
		{Category: "Utilities"},
	}
	assert.Equal(t, 0.667, agreementScore(candidates))
	assert.Equal(t, 0.0, agreementScore(nil))
}
