// Package model defines the core domain models used throughout the application.
package model

// DecisionSource indicates which tier of the cascade produced a decision.
type DecisionSource string

// Decision source constants, in cascade priority order.
const (
	SourceHumanVerified DecisionSource = "human_verified"
	SourceEmbedding     DecisionSource = "embedding"
	SourceRules         DecisionSource = "rules"
	SourceLLM           DecisionSource = "llm"
	SourceNone          DecisionSource = "none"
)

// NeedsReview is the universal safe fallback category. It must be a member
// of every configured category whitelist.
const NeedsReview = "Needs Review"

// ReliabilityLevel is a coarse trust label derived from ensemble consensus.
type ReliabilityLevel string

const (
	// ReliabilityHigh means self-consistent with agreement score >= 0.8.
	ReliabilityHigh ReliabilityLevel = "high"
	// ReliabilityMedium means self-consistent with lower agreement.
	ReliabilityMedium ReliabilityLevel = "medium"
	// ReliabilityLow means no self-consistency was established.
	ReliabilityLow ReliabilityLevel = "low"
)

// EnsembleMetadata records the consensus signals from the model ensemble.
// It is metadata only: it never alters the category or confidence.
type EnsembleMetadata struct {
	Reliability    ReliabilityLevel `json:"reliability"`
	AgreementScore float64          `json:"agreement_score"`
	SelfConsistent bool             `json:"self_consistent"`
	CrossModelUsed bool             `json:"cross_model_used"`
}

// Decision is the final output of the classification cascade.
type Decision struct {
	Category           string
	Confidence         float64
	Explanation        string
	NormalizedMerchant string
	Source             DecisionSource
	Ensemble           *EnsembleMetadata
	NeedsReview        bool
}

// EvidenceTrail is an ordered sequence of human-readable justification
// statements. It is always a slice, never nil, and safe to render directly.
type EvidenceTrail []string
