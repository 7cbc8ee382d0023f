// Package guardrail enforces a fixed schema and category whitelist over
// untrusted model output. Nothing a model returns is trusted: every field
// is checked, coerced, or replaced with a defensible default, and every
// repair is surfaced as a flag.
package guardrail

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Failure kinds returned when no candidate can be salvaged at all.
const (
	FlagEmptyResponse    = "empty_response"
	FlagParseError       = "json_parse_error"
	FlagInvalidStructure = "invalid_json_structure"
)

// Candidate is a fully-populated, sanitized classification candidate.
// Callers never need a secondary nil-check on individual fields.
type Candidate struct {
	Category           string
	Explanation        string
	NormalizedMerchant string
	Confidence         float64
}

// Validator sanitizes raw model output against the category whitelist.
type Validator struct {
	whitelist map[string]struct{}
}

// NewValidator creates a validator for the given category whitelist.
func NewValidator(categories []string) *Validator {
	wl := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wl[c] = struct{}{}
	}
	return &Validator{whitelist: wl}
}

// Validate parses and sanitizes raw model text. On success it returns a
// fully-populated candidate plus any repair flags; on failure it returns a
// nil candidate and a single flag naming the failure kind.
func (v *Validator) Validate(raw string) (*Candidate, []string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, []string{FlagEmptyResponse}
	}

	text = stripMarkdownFence(text)

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		// A valid JSON document that is not an object is a structural
		// failure, not a parse failure.
		var probe any
		if json.Unmarshal([]byte(text), &probe) == nil {
			return nil, []string{FlagInvalidStructure}
		}
		return nil, []string{FlagParseError}
	}

	var flags []string
	candidate := &Candidate{}

	category, _ := data["category"].(string)
	if _, ok := v.whitelist[category]; !ok {
		flags = append(flags, "invalid_category")
		category = "Needs Review"
	}
	candidate.Category = category

	confidence, ok := coerceFloat(data["confidence"])
	if !ok {
		flags = append(flags, "invalid_confidence")
		confidence = 0
	}
	switch {
	case confidence < 0:
		flags = append(flags, "negative_confidence")
		confidence = 0
	case confidence > 1:
		flags = append(flags, "confidence_out_of_range")
		confidence = 1
	}
	candidate.Confidence = confidence

	if expl, exists := data["explanation"]; exists {
		s, isString := expl.(string)
		if !isString {
			flags = append(flags, "invalid_explanation")
		}
		candidate.Explanation = s
	}

	if merchant, exists := data["normalized_merchant"]; exists {
		s, isString := merchant.(string)
		if !isString {
			flags = append(flags, "invalid_normalized_merchant")
		}
		candidate.NormalizedMerchant = s
	}

	if candidate.Category == "" {
		flags = append(flags, "missing_category")
	}
	if candidate.Confidence == 0 {
		flags = append(flags, "low_confidence")
	}

	return candidate, flags
}

// stripMarkdownFence removes a surrounding triple-backtick block and an
// optional leading "json" language tag. Models wrap JSON this way often
// enough that it is worth repairing before parsing.
func stripMarkdownFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
		text = strings.TrimSpace(text[4:])
	}
	return text
}

// coerceFloat accepts JSON numbers and numeric strings; everything else
// fails coercion. A missing value coerces to 0 without a flag, matching
// the "assume nothing, default safely" posture.
func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
