package ensemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nmoretto/tally/internal/common"
)

// OpenAIConfig configures the primary model provider.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
}

// OpenAIProvider serves the primary ensemble tier through the OpenAI
// chat completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
	system string
}

// NewOpenAIProvider creates the primary model provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", common.ErrMissingConfig)
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
	}, nil
}

// Name implements service.ModelProvider.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate implements service.ModelProvider.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.system),
			openai.UserMessage(prompt),
		},
		Model:       p.model,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("openai completion: %w", err), Retryable: true}
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: response contained no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai completion: response was empty")
	}
	return content, nil
}
