// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/nmoretto/tally/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Merchant memory operations
	GetMerchant(ctx context.Context, name string) (*model.MerchantRecord, error)
	GetAllMerchants(ctx context.Context) ([]model.MerchantRecord, error)
	SaveMerchant(ctx context.Context, record *model.MerchantRecord) error

	// Decision audit log operations
	SaveDecision(ctx context.Context, record *model.DecisionRecord) error
	GetDecision(ctx context.Context, id string) (*model.DecisionRecord, error)
	GetRecentDecisions(ctx context.Context, limit int) ([]model.DecisionRecord, error)
	MarkDecisionCorrected(ctx context.Context, id, category string, at time.Time) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ModelProvider is a single chat-completion backend. Generate returns the
// raw model text; any transport failure, timeout, or empty output is
// reported as an error and treated by callers as "no candidate".
type ModelProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// EmbeddingProvider converts text into a fixed-length embedding vector.
// A nil vector (with or without an error) degrades the pipeline gracefully:
// no memory lookup, no drift tracking.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Redactor removes PII from text before it is embedded or sent to any
// external model. It always succeeds.
type Redactor interface {
	Redact(text string) (clean string, hadPII bool, flags []string)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
