package llm

import (
	"fmt"
	"log/slog"
	"strings"
)

// NewClient creates a provider client from configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	case ProviderGemini:
		return newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewFromConfig builds a classifier from configuration. An empty provider
// or API key yields an unavailable classifier rather than an error.
func NewFromConfig(cfg Config) (*LLMClassifier, error) {
	if cfg.Provider == "" || cfg.APIKey == "" {
		slog.Debug("External text classifier disabled", "provider", cfg.Provider)
		return NewClassifier(nil, cfg), nil
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifier(client, cfg), nil
}
