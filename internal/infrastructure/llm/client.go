package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"NewsAtlas/internal/config"
	"NewsAtlas/internal/ports"
)

// New builds the classifier selected by cfg.Provider.
func New(cfg config.ClassifierConfig) (ports.Classifier, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("classifier misconfigured: api key and model are required")
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClassifier(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicClassifier(cfg), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// rejectedStatus reports HTTP statuses a retry cannot fix.
func rejectedStatus(code int) bool {
	if code < http.StatusBadRequest || code >= http.StatusInternalServerError {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return true
}

func wrapStatus(provider string, code int, err error) error {
	if rejectedStatus(code) {
		return fmt.Errorf("%s: %w: %w", provider, ports.ErrRejected, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}

var errEmptyReply = errors.New("empty reply")

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return config.DefaultSystemPrompt
	}
	return prompt
}

func baseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}
