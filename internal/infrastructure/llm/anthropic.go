package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/ports"
)

const defaultAnthropicMaxTokens = 512

// AnthropicClassifier implements ports.Classifier with the Messages API.
type AnthropicClassifier struct {
	client       *anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int64
}

var _ ports.Classifier = (*AnthropicClassifier)(nil)

// NewAnthropicClassifier builds a client from configuration. The default
// Perplexity endpoint is ignored; any other endpoint is used as the base URL.
func NewAnthropicClassifier(cfg config.ClassifierConfig) *AnthropicClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != config.DefaultClassifierEndpoint {
		if u := baseURL(cfg.Endpoint); u != "" {
			opts = append(opts, option.WithBaseURL(u))
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicClassifier{
		client:       &client,
		model:        cfg.Model,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		maxTokens:    maxTokens,
	}
}

// Classify sends text as the user message and joins the text blocks of the reply.
func (c *AnthropicClassifier) Classify(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", wrapStatus("anthropic", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("anthropic: %w", errEmptyReply)
	}
	return sb.String(), nil
}
