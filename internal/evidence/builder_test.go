package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nmoretto/tally/internal/model"
)

func TestBuildFullTrail(t *testing.T) {
	got := Build(Inputs{
		RuleKeyword:   "southwest",
		MatchedName:   "southwest airlines",
		Similarity:    0.97,
		OverrideCount: 2,
		Source:        model.SourceRules,
	})

	assert.Equal(t, model.EvidenceTrail{
		"Matched rule token 'southwest'",
		"Embedding similarity 0.97 to 'southwest airlines'",
		"Previously overridden 2 times",
		"Confirmed by rules",
	}, got)
}

func TestBuildSourceOnly(t *testing.T) {
	got := Build(Inputs{Source: model.SourceLLM})

	assert.Equal(t, model.EvidenceTrail{"Confirmed by llm"}, got)
}

func TestBuildUnknownSource(t *testing.T) {
	got := Build(Inputs{Source: model.SourceNone})

	assert.Equal(t, model.EvidenceTrail{"Decision made via none"}, got)
}

func TestBuildNeverNil(t *testing.T) {
	got := Build(Inputs{})

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildSkipsZeroSimilarity(t *testing.T) {
	got := Build(Inputs{
		MatchedName: "stale merchant",
		Source:      model.SourceEmbedding,
	})

	assert.Equal(t, model.EvidenceTrail{"Confirmed by embedding"}, got)
}
