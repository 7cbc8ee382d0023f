package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/nmoretto/tally/internal/config"
	"github.com/nmoretto/tally/internal/embedding"
	"github.com/nmoretto/tally/internal/engine"
	"github.com/nmoretto/tally/internal/ensemble"
	"github.com/nmoretto/tally/internal/guardrail"
	"github.com/nmoretto/tally/internal/memory"
	"github.com/nmoretto/tally/internal/pii"
	"github.com/nmoretto/tally/internal/rules"
	"github.com/nmoretto/tally/internal/service"
	"github.com/nmoretto/tally/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/tally/tally.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadCategories returns the configured category whitelist, guaranteed to
// contain the "Needs Review" fallback.
func loadCategories() []string {
	categories := viper.GetStringSlice("categories")
	if len(categories) == 0 {
		categories = config.DefaultCategories()
	}
	return config.EnsureNeedsReview(categories)
}

// engineCloser tears down everything buildEngine wired up.
type engineCloser func()

// buildEngine wires the full classification cascade. Missing API keys
// degrade the engine rather than failing it: without an OpenAI key there
// is no embedding tier, and the ensemble runs with whatever providers
// could be built.
func buildEngine(store service.Storage) (*engine.Engine, engineCloser, error) {
	categories := loadCategories()
	validator := guardrail.NewValidator(categories)
	systemPrompt := ensemble.SystemPrompt(categories)

	openaiKey := apiKey("openai.api_key", "OPENAI_API_KEY")
	anthropicKey := apiKey("anthropic.api_key", "ANTHROPIC_API_KEY")

	var primary, secondary service.ModelProvider
	if openaiKey != "" {
		provider, err := ensemble.NewOpenAIProvider(ensemble.OpenAIConfig{
			APIKey:       openaiKey,
			Model:        viper.GetString("openai.model"),
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			return nil, nil, err
		}
		primary = provider
	}
	if anthropicKey != "" {
		provider, err := ensemble.NewAnthropicProvider(ensemble.AnthropicConfig{
			APIKey:       anthropicKey,
			Model:        viper.GetString("anthropic.model"),
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			return nil, nil, err
		}
		secondary = provider
	}
	if primary == nil && secondary == nil {
		slog.Warn("no model API keys configured, ensemble tier will always fail")
	}
	if primary == nil {
		primary = unavailableProvider{name: "openai"}
	}
	if secondary == nil {
		secondary = unavailableProvider{name: "anthropic"}
	}

	ensembleCfg := ensemble.DefaultConfig()
	if limit := viper.GetInt("ensemble.rate_limit"); limit > 0 {
		ensembleCfg.RateLimit = limit
	}
	resolver := ensemble.NewResolver(primary, secondary, validator, ensembleCfg, slog.Default())

	var embedder service.EmbeddingProvider
	if openaiKey != "" {
		provider, err := embedding.NewOpenAIEmbedder(embedding.Config{
			APIKey: openaiKey,
			Model:  viper.GetString("openai.embedding_model"),
		})
		if err != nil {
			resolver.Close()
			return nil, nil, err
		}
		embedder = provider
	} else {
		slog.Warn("no OpenAI API key configured, merchant memory lookup disabled")
	}

	eng := engine.New(
		store,
		rules.NewMatcher(nil),
		resolver,
		embedder,
		pii.NewRedactor(),
		memory.NewDriftDetector(0, 0),
		engine.DefaultConfig(categories),
		slog.Default(),
	)

	return eng, resolver.Close, nil
}

func apiKey(configKey, envVar string) string {
	if key := viper.GetString(configKey); key != "" {
		return key
	}
	return os.Getenv(envVar)
}

// unavailableProvider stands in for a model tier without credentials.
// Every call fails, which the resolver degrades to "no candidate".
type unavailableProvider struct {
	name string
}

func (p unavailableProvider) Name() string { return p.name }

func (p unavailableProvider) Generate(_ context.Context, _ string, _ float64) (string, error) {
	return "", fmt.Errorf("%s provider not configured", p.name)
}
