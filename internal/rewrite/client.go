// Package rewrite produces the short acknowledgment that stands in for a
// speaker's raw text. Generation is best effort and bounded in time.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"kindred/backend/internal/config"
)

// Client is a text-generation backend.
type Client interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// NewClient builds the configured provider. ProviderNone yields a nil
// Client, which makes every rewrite fall back.
func NewClient(cfg *config.Config) (Client, error) {
	switch config.LLMProvider(strings.ToLower(string(cfg.LLMProvider))) {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider %s", cfg.LLMProvider)
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case config.ProviderYandex:
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID)
	case config.ProviderNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
}
