package llm

import (
	"context"
	"time"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Client sends one prompt to a provider and returns the raw text reply.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	MaxRetries    int
	RetryDelay    time.Duration
	CacheTTL      time.Duration
	Timeout       time.Duration
	RateLimit     int
	Temperature   float64
	MaxTokens     int
	MinConfidence float64
}

func (cfg Config) temperature() float64 {
	if cfg.Temperature == 0 {
		return 0.3
	}
	return cfg.Temperature
}

func (cfg Config) maxTokens() int {
	if cfg.MaxTokens == 0 {
		return 300
	}
	return cfg.MaxTokens
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
