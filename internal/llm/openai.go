package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const openAIBaseURL = "https://api.openai.com"

// openAIClient implements the Client interface for OpenAI API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.temperature(),
		maxTokens:   cfg.maxTokens(),
		httpClient:  newHTTPClient(),
	}, nil
}

// openAIResponse represents the chat completions response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a chat completion request to OpenAI in JSON mode.
func (c *openAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": system,
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     c.temperature,
		"max_tokens":      c.maxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var response openAIResponse
	if err := postJSON(ctx, c.httpClient, "OpenAI", c.baseURL+"/v1/chat/completions", headers, requestBody, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return response.Choices[0].Message.Content, nil
}
