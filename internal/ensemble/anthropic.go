package ensemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nmoretto/tally/internal/common"
)

// AnthropicConfig configures the secondary model provider.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int64
}

// AnthropicProvider serves the secondary ensemble tier through the
// Anthropic messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
	system string
	tokens int64
}

// NewAnthropicProvider creates the secondary model provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", common.ErrMissingConfig)
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_5Sonnet20241022)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  anthropic.Model(cfg.Model),
		system: cfg.SystemPrompt,
		tokens: cfg.MaxTokens,
	}, nil
}

// Name implements service.ModelProvider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate implements service.ModelProvider.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   p.tokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: p.system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("anthropic message: %w", err), Retryable: true}
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("anthropic message: response was empty")
	}
	return content, nil
}
