package model

// RiskLevel is a presentation band derived from the numeric risk score.
type RiskLevel string

// Risk level bands.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskAssessment is a bounded numeric risk score plus the ordered,
// de-duplicated flags explaining why risk increased.
type RiskAssessment struct {
	Flags []string
	Score float64
}

// Level bands the score for display: High above 0.6, Medium above 0.3.
func (r RiskAssessment) Level() RiskLevel {
	switch {
	case r.Score > 0.6:
		return RiskHigh
	case r.Score > 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}
