// Package ensemble runs the multi-model classification tiers: the primary
// model twice at two temperatures, then a secondary model twice when the
// primary pair cannot be trusted on its own. Every raw response passes
// through the guardrail validator independently, and disagreement is
// resolved by explicit policy rather than by trusting any single call.
package ensemble

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/guardrail"
	"github.com/nmoretto/tally/internal/model"
	"github.com/nmoretto/tally/internal/service"
)

// Config holds tuning parameters for the ensemble resolver.
type Config struct {
	TemperatureLow    float64
	TemperatureHigh   float64
	ConsistencyDelta  float64
	VarianceThreshold float64
	CallTimeout       time.Duration
	RateLimit         int
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		TemperatureLow:    0.2,
		TemperatureHigh:   0.3,
		ConsistencyDelta:  0.15,
		VarianceThreshold: 0.3,
		CallTimeout:       30 * time.Second,
		RateLimit:         60,
	}
}

// Metadata records how the ensemble reached (or failed to reach) a result.
type Metadata struct {
	Reliability    model.ReliabilityLevel
	Flags          []string
	AgreementScore float64
	SelfConsistent bool
	CrossModelUsed bool
}

// Resolver escalates across the primary and secondary model tiers.
type Resolver struct {
	primary   service.ModelProvider
	secondary service.ModelProvider
	validator *guardrail.Validator
	limiter   *rateLimiter
	logger    *slog.Logger
	cfg       Config
}

// NewResolver creates an ensemble resolver over the two model providers.
func NewResolver(primary, secondary service.ModelProvider, validator *guardrail.Validator, cfg Config, logger *slog.Logger) *Resolver {
	defaults := DefaultConfig()
	if cfg.TemperatureLow == 0 && cfg.TemperatureHigh == 0 {
		cfg.TemperatureLow = defaults.TemperatureLow
		cfg.TemperatureHigh = defaults.TemperatureHigh
	}
	if cfg.ConsistencyDelta == 0 {
		cfg.ConsistencyDelta = defaults.ConsistencyDelta
	}
	if cfg.VarianceThreshold == 0 {
		cfg.VarianceThreshold = defaults.VarianceThreshold
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		primary:   primary,
		secondary: secondary,
		validator: validator,
		limiter:   newRateLimiter(cfg.RateLimit),
		logger:    logger,
		cfg:       cfg,
	}
}

// Close stops the shared rate limiter.
func (r *Resolver) Close() {
	r.limiter.Close()
}

// Classify runs the tiered ensemble for one description. It returns the
// chosen validated candidate, or nil with metadata recording total failure.
func (r *Resolver) Classify(ctx context.Context, description string) (*guardrail.Candidate, Metadata) {
	var flags []string
	var all []*guardrail.Candidate

	// Tier 1: primary model, twice, at two temperatures.
	p1, p2, pairFlags := r.callPair(ctx, r.primary, description)
	flags = append(flags, pairFlags...)
	all = appendCandidates(all, p1, p2)

	var primaryBest *guardrail.Candidate

	switch {
	case p1 != nil && p2 != nil:
		if r.consistent(p1, p2) {
			// Fast path: the primary model agrees with itself, no
			// secondary call is spent.
			meta := Metadata{
				SelfConsistent: true,
				CrossModelUsed: false,
				AgreementScore: 1.0,
				Flags:          flags,
			}
			meta.Reliability = deriveReliability(meta.SelfConsistent, meta.AgreementScore)
			return p1, meta
		}

		flags = append(flags, "model_disagreement")
		if math.Abs(p1.Confidence-p2.Confidence) > r.cfg.VarianceThreshold {
			flags = append(flags, "high_confidence_variance")
		}
		flags = append(flags, r.primary.Name()+"_self_inconsistent")
		primaryBest = highestConfidence(p1, p2)

	case p1 != nil || p2 != nil:
		// A lone response is never auto-trusted.
		flags = append(flags, "partial_"+r.primary.Name()+"_response")
		primaryBest = firstNonNil(p1, p2)
	}

	// Tier 2: secondary model, same temperature policy.
	s1, s2, pairFlags := r.callPair(ctx, r.secondary, description)
	flags = append(flags, pairFlags...)
	all = appendCandidates(all, s1, s2)

	var secondaryBest *guardrail.Candidate
	secondaryConsistent := false

	switch {
	case s1 != nil && s2 != nil:
		secondaryConsistent = r.consistent(s1, s2)
		if !secondaryConsistent {
			if math.Abs(s1.Confidence-s2.Confidence) > r.cfg.VarianceThreshold {
				flags = append(flags, "high_confidence_variance")
			}
			flags = append(flags, r.secondary.Name()+"_self_inconsistent")
		}
		secondaryBest = highestConfidence(s1, s2)

	case s1 != nil || s2 != nil:
		flags = append(flags, "partial_"+r.secondary.Name()+"_response")
		secondaryBest = firstNonNil(s1, s2)
	}

	chosen := secondaryBest
	selfConsistent := secondaryConsistent
	if chosen == nil {
		chosen = primaryBest
		selfConsistent = false
	}

	if chosen == nil {
		flags = append(flags, "all_model_calls_failed")
		return nil, Metadata{
			CrossModelUsed: true,
			Reliability:    model.ReliabilityLow,
			Flags:          flags,
		}
	}

	meta := Metadata{
		SelfConsistent: selfConsistent,
		CrossModelUsed: true,
		AgreementScore: agreementScore(all),
		Flags:          flags,
	}
	meta.Reliability = deriveReliability(meta.SelfConsistent, meta.AgreementScore)
	return chosen, meta
}

// callPair dispatches two calls to one provider concurrently, one at each
// temperature. Each call carries its own timeout, and a failure degrades
// that call to "no candidate" without aborting its sibling.
func (r *Resolver) callPair(ctx context.Context, provider service.ModelProvider, description string) (*guardrail.Candidate, *guardrail.Candidate, []string) {
	temps := []float64{r.cfg.TemperatureLow, r.cfg.TemperatureHigh}
	candidates := make([]*guardrail.Candidate, 2)
	callFlags := make([][]string, 2)

	var wg sync.WaitGroup
	for i, temp := range temps {
		wg.Add(1)
		go func(idx int, temperature float64) {
			defer wg.Done()
			candidates[idx], callFlags[idx] = r.callOne(ctx, provider, description, temperature)
		}(i, temp)
	}
	wg.Wait()

	flags := append([]string{}, callFlags[0]...)
	flags = append(flags, callFlags[1]...)
	return candidates[0], candidates[1], flags
}

// callOne performs a single rate-limited, timeout-bounded model call and
// validates the raw output. Transport failures yield no candidate and no
// flags; untrusted-output problems surface as guardrail flags.
func (r *Resolver) callOne(ctx context.Context, provider service.ModelProvider, description string, temperature float64) (*guardrail.Candidate, []string) {
	if err := r.limiter.wait(ctx); err != nil {
		r.logger.Warn("rate limiter interrupted",
			"provider", provider.Name(),
			"error", err)
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	raw, err := provider.Generate(callCtx, buildUserPrompt(description), temperature)
	if err != nil {
		r.logger.Warn("model call failed",
			"provider", provider.Name(),
			"temperature", temperature,
			"retryable", common.IsRetryable(err),
			"error", err)
		return nil, nil
	}

	candidate, flags := r.validator.Validate(raw)
	if candidate == nil {
		r.logger.Warn("model output rejected by guardrail",
			"provider", provider.Name(),
			"flags", flags)
	}
	return candidate, flags
}

// consistent reports whether two candidates agree on category with
// confidences within the configured delta.
func (r *Resolver) consistent(a, b *guardrail.Candidate) bool {
	return a.Category == b.Category &&
		math.Abs(a.Confidence-b.Confidence) <= r.cfg.ConsistencyDelta
}

// agreementScore is the fraction of all validated candidates sharing the
// majority category, rounded to three decimals.
func agreementScore(candidates []*guardrail.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}

	counts := make(map[string]int)
	best := 0
	for _, c := range candidates {
		counts[c.Category]++
		if counts[c.Category] > best {
			best = counts[c.Category]
		}
	}

	return math.Round(float64(best)/float64(len(candidates))*1000) / 1000
}

// deriveReliability maps consensus signals to a coarse trust label. It is
// metadata only and never changes the category or confidence.
func deriveReliability(selfConsistent bool, agreement float64) model.ReliabilityLevel {
	switch {
	case selfConsistent && agreement >= 0.8:
		return model.ReliabilityHigh
	case selfConsistent:
		return model.ReliabilityMedium
	default:
		return model.ReliabilityLow
	}
}

func highestConfidence(a, b *guardrail.Candidate) *guardrail.Candidate {
	if b.Confidence > a.Confidence {
		return b
	}
	return a
}

func firstNonNil(a, b *guardrail.Candidate) *guardrail.Candidate {
	if a != nil {
		return a
	}
	return b
}

func appendCandidates(all []*guardrail.Candidate, candidates ...*guardrail.Candidate) []*guardrail.Candidate {
	if all == nil {
		all = []*guardrail.Candidate{}
	}
	for _, c := range candidates {
		if c != nil {
			all = append(all, c)
		}
	}
	return all
}
