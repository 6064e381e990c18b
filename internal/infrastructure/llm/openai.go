package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/ports"
)

// OpenAIClassifier implements ports.Classifier against OpenAI-compatible chat
// completion APIs. The default endpoint is Perplexity's sonar.
type OpenAIClassifier struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxTokens    int64
}

var _ ports.Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a client from configuration. Retries are left to the caller.
func NewOpenAIClassifier(cfg config.ClassifierConfig) *OpenAIClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if u := baseURL(cfg.Endpoint); u != "" {
		opts = append(opts, option.WithBaseURL(u))
	}

	client := openai.NewClient(opts...)
	return &OpenAIClassifier{
		client:       &client,
		model:        cfg.Model,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		maxTokens:    cfg.MaxTokens,
	}
}

// Classify sends text as the user message and returns the first choice verbatim.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(text),
		},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", wrapStatus("openai", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", errEmptyReply)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai: %w", errEmptyReply)
	}
	return content, nil
}
