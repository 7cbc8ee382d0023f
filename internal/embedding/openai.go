// Package embedding produces merchant vectors through the OpenAI
// embeddings API. A failed embedding is never fatal to classification;
// callers treat a nil vector as "similarity unavailable".
package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/service"
)

// Config configures the embedding provider.
type Config struct {
	APIKey string
	Model  string
}

// OpenAIEmbedder implements service.EmbeddingProvider over the OpenAI API.
type OpenAIEmbedder struct {
	client openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedding provider.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", common.ErrMissingConfig)
	}
	if cfg.Model == "" {
		cfg.Model = openai.EmbeddingModelTextEmbedding3Small
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Embed returns the embedding vector for text. Transient API failures are
// retried with backoff before the caller degrades to no-vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: text is empty")
	}

	var vector []float64
	err := common.WithRetry(ctx, func() error {
		resp, callErr := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: e.model,
		})
		if callErr != nil {
			return &common.RetryableError{Err: fmt.Errorf("embed: %w", callErr), Retryable: true}
		}
		if len(resp.Data) == 0 {
			return &common.RetryableError{Err: fmt.Errorf("embed: response contained no vectors"), Retryable: false}
		}
		vector = resp.Data[0].Embedding
		return nil
	}, service.RetryOptions{MaxAttempts: 2})
	if err != nil {
		return nil, err
	}

	return vector, nil
}
