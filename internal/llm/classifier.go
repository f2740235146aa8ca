package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Classifier defaults.
const (
	DefaultMinConfidence = 0.5
	DefaultTimeout       = 30 * time.Second
)

// ErrNoDescribedCategories means no category has a description to offer.
var ErrNoDescribedCategories = errors.New("no categories with descriptions")

// TextResult is the external classifier's decision for one transaction.
type TextResult struct {
	// CategoryID is nil when no offered category fits.
	CategoryID     *int64
	Classification model.Classification
	CategoryName   string
	Reasoning      string
	Confidence     float64
}

// TextClassifier is an optional external classifier.
type TextClassifier interface {
	Available() bool
	Classify(ctx context.Context, txn model.Transaction, accountType model.AccountType, categories []model.Category) (*TextResult, error)
}

// LLMClassifier classifies transactions with a language model provider.
type LLMClassifier struct {
	client        Client
	cache         *resultCache
	limiter       *rateLimiter
	retryOpts     service.RetryOptions
	timeout       time.Duration
	minConfidence float64
}

// NewClassifier wraps client. A nil client gives a classifier that reports
// itself unavailable.
func NewClassifier(client Client, cfg Config) *LLMClassifier {
	c := &LLMClassifier{
		client:        client,
		timeout:       cfg.Timeout,
		minConfidence: cfg.MinConfidence,
		retryOpts: service.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Retryable:    retryable,
		},
	}

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.minConfidence <= 0 {
		c.minConfidence = DefaultMinConfidence
	}
	if c.retryOpts.MaxAttempts == 0 {
		c.retryOpts.MaxAttempts = 3
	}
	if c.retryOpts.InitialDelay == 0 {
		c.retryOpts.InitialDelay = time.Second
	}

	if client != nil {
		c.cache = newResultCache(cfg.CacheTTL)
		c.limiter = newRateLimiter(cfg.RateLimit)
	}
	return c
}

// Available reports whether a provider is configured.
func (c *LLMClassifier) Available() bool {
	return c != nil && c.client != nil
}

// Close stops background work and releases the provider.
func (c *LLMClassifier) Close() error {
	if !c.Available() {
		return nil
	}
	c.cache.Close()
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func cacheKey(txn model.Transaction, accountType model.AccountType) string {
	return string(accountType) + "|" + strings.ToLower(strings.TrimSpace(txn.MerchantText()))
}

// Classify asks the provider to classify txn. Only categories with a
// natural-language description are offered. Transport failures, malformed
// replies, unknown categories and low confidence are all returned as errors.
func (c *LLMClassifier) Classify(ctx context.Context, txn model.Transaction, accountType model.AccountType, categories []model.Category) (*TextResult, error) {
	if !c.Available() {
		return nil, common.ErrClassifierUnavailable
	}

	offered := make([]model.Category, 0, len(categories))
	for _, cat := range categories {
		if cat.HasNLDescription() {
			offered = append(offered, cat)
		}
	}
	if len(offered) == 0 {
		return nil, ErrNoDescribedCategories
	}

	key := cacheKey(txn, accountType)
	if cached, found := c.cache.get(key); found {
		slog.Debug("cache hit for transaction",
			"transaction_id", txn.ID,
			"merchant", txn.MerchantText())
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(txn, accountType, offered)

	var result *TextResult
	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		content, err := c.client.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return err
		}
		result, err = parseResponse(content, offered)
		return err
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to classify transaction: %w", err)
	}
	if result.Confidence < c.minConfidence {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, result.Confidence, c.minConfidence)
	}

	c.cache.set(key, *result)

	slog.Info("transaction classified",
		"transaction_id", txn.ID,
		"merchant", txn.MerchantText(),
		"category", result.CategoryName,
		"classification", result.Classification,
		"confidence", result.Confidence)

	return result, nil
}
