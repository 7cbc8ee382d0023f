package model

import "time"

// DecisionRecord is one row of the append-only decision audit log. It keeps
// everything needed to reconstruct why a classification happened: the inputs,
// the decision, the evidence trail, the risk assessment, and any later human
// correction.
type DecisionRecord struct {
	CreatedAt        time.Time
	OverrideAt       *time.Time
	ID               string
	RawDescription   string
	CleanDescription string
	Category         string
	Explanation      string
	OverrideCategory string
	Source           DecisionSource
	Evidence         EvidenceTrail
	RiskFlags        []string
	Ensemble         *EnsembleMetadata
	Confidence       float64
	RiskScore        float64
	NeedsReview      bool
	HadPII           bool
	Overridden       bool
}
