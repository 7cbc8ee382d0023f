package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWhitelist = []string{
	"Travel",
	"Meals & Entertainment",
	"Software / SaaS",
	"Needs Review",
}

func TestValidateFailures(t *testing.T) {
	v := NewValidator(testWhitelist)

	tests := []struct {
		name     string
		raw      string
		wantFlag string
	}{
		{name: "empty response", raw: "", wantFlag: FlagEmptyResponse},
		{name: "whitespace only", raw: "   \n ", wantFlag: FlagEmptyResponse},
		{name: "malformed json", raw: `{"category": "Travel"`, wantFlag: FlagParseError},
		{name: "non-object json", raw: `["Travel", 0.9]`, wantFlag: FlagInvalidStructure},
		{name: "bare string", raw: `"Travel"`, wantFlag: FlagInvalidStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, flags := v.Validate(tt.raw)
			assert.Nil(t, candidate)
			assert.Equal(t, []string{tt.wantFlag}, flags)
		})
	}
}

func TestValidateCleanCandidate(t *testing.T) {
	v := NewValidator(testWhitelist)

	candidate, flags := v.Validate(`{"category": "Travel", "confidence": 0.92, "explanation": "airline fare", "normalized_merchant": "delta"}`)
	require.NotNil(t, candidate)
	assert.Empty(t, flags)
	assert.Equal(t, "Travel", candidate.Category)
	assert.InDelta(t, 0.92, candidate.Confidence, 1e-9)
	assert.Equal(t, "airline fare", candidate.Explanation)
	assert.Equal(t, "delta", candidate.NormalizedMerchant)
}

func TestValidateStripsMarkdownFence(t *testing.T) {
	v := NewValidator(testWhitelist)

	raw := "```json\n{\"category\": \"Travel\", \"confidence\": 0.8}\n```"
	candidate, flags := v.Validate(raw)
	require.NotNil(t, candidate)
	assert.Empty(t, flags)
	assert.Equal(t, "Travel", candidate.Category)
}

func TestValidateCategoryOutsideWhitelist(t *testing.T) {
	v := NewValidator(testWhitelist)

	candidate, flags := v.Validate(`{"category": "Crypto Trading", "confidence": 0.9}`)
	require.NotNil(t, candidate)
	// The original value is discarded, never merged back in.
	assert.Equal(t, "Needs Review", candidate.Category)
	assert.Contains(t, flags, "invalid_category")
}

func TestValidateConfidenceCoercion(t *testing.T) {
	v := NewValidator(testWhitelist)

	tests := []struct {
		name      string
		raw       string
		wantConf  float64
		wantFlags []string
	}{
		{
			name:      "non-numeric confidence",
			raw:       `{"category": "Travel", "confidence": "high"}`,
			wantConf:  0,
			wantFlags: []string{"invalid_confidence", "low_confidence"},
		},
		{
			name:      "numeric string accepted",
			raw:       `{"category": "Travel", "confidence": "0.7"}`,
			wantConf:  0.7,
			wantFlags: nil,
		},
		{
			name:      "negative clamped",
			raw:       `{"category": "Travel", "confidence": -0.4}`,
			wantConf:  0,
			wantFlags: []string{"negative_confidence", "low_confidence"},
		},
		{
			name:      "above one clamped",
			raw:       `{"category": "Travel", "confidence": 1.7}`,
			wantConf:  1,
			wantFlags: []string{"confidence_out_of_range"},
		},
		{
			name:      "missing confidence defaults to zero",
			raw:       `{"category": "Travel"}`,
			wantConf:  0,
			wantFlags: []string{"low_confidence"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, flags := v.Validate(tt.raw)
			require.NotNil(t, candidate)
			assert.InDelta(t, tt.wantConf, candidate.Confidence, 1e-9)
			assert.Equal(t, tt.wantFlags, flags)
		})
	}
}

func TestValidateTextFields(t *testing.T) {
	v := NewValidator(testWhitelist)

	candidate, flags := v.Validate(`{"category": "Travel", "confidence": 0.9, "explanation": 42, "normalized_merchant": {"a": 1}}`)
	require.NotNil(t, candidate)
	assert.Contains(t, flags, "invalid_explanation")
	assert.Contains(t, flags, "invalid_normalized_merchant")
	assert.Empty(t, candidate.Explanation)
	assert.Empty(t, candidate.NormalizedMerchant)
}
