// Package engine implements the cascading classification pipeline for
// expense descriptions. Tiers run in strict priority order: human-verified
// merchant memory, high-confidence embedding match, deterministic rules,
// then the model ensemble as a last resort. Every completed decision is
// persisted to the audit log with its evidence trail and risk assessment.
package engine

import (
	"context"
	"log/slog"

	"github.com/nmoretto/tally/internal/ensemble"
	"github.com/nmoretto/tally/internal/guardrail"
	"github.com/nmoretto/tally/internal/memory"
	"github.com/nmoretto/tally/internal/rules"
	"github.com/nmoretto/tally/internal/service"
)

// Resolver is the model-ensemble tier. It never returns an error: total
// failure is a nil candidate plus flags in the metadata.
type Resolver interface {
	Classify(ctx context.Context, description string) (*guardrail.Candidate, ensemble.Metadata)
}

// Config holds the decision thresholds for the engine.
type Config struct {
	Categories          []string
	SimilarityThreshold float64
	ConfidenceThreshold float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig(categories []string) Config {
	return Config{
		Categories:          categories,
		SimilarityThreshold: 0.90,
		ConfidenceThreshold: 0.65,
	}
}

// Engine orchestrates the classification cascade.
type Engine struct {
	storage  service.Storage
	memory   *memory.Index
	drift    *memory.DriftDetector
	matcher  *rules.Matcher
	resolver Resolver
	embedder service.EmbeddingProvider
	redactor service.Redactor
	logger   *slog.Logger
	cfg      Config
}

// New creates a classification engine with the given dependencies. The
// embedder may be nil, which disables memory lookup and drift tracking.
func New(
	storage service.Storage,
	matcher *rules.Matcher,
	resolver Resolver,
	embedder service.EmbeddingProvider,
	redactor service.Redactor,
	drift *memory.DriftDetector,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.90
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.65
	}
	if drift == nil {
		drift = memory.NewDriftDetector(0, 0)
	}

	return &Engine{
		storage:  storage,
		memory:   memory.NewIndex(storage),
		drift:    drift,
		matcher:  matcher,
		resolver: resolver,
		embedder: embedder,
		redactor: redactor,
		logger:   logger,
		cfg:      cfg,
	}
}

// allowedCategory reports whether category is in the configured whitelist.
func (e *Engine) allowedCategory(category string) bool {
	for _, c := range e.cfg.Categories {
		if c == category {
			return true
		}
	}
	return false
}
