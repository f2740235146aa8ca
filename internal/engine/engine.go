// Package engine orchestrates categorization. Suggestions come from
// merchant rules, then the external text classifier, then the keyword
// heuristic. The statistical classifier is trained and applied separately
// through Train, Predict and AutoCategorize. The engine also owns the
// feedback path that confirms transactions and feeds the rule learner and
// similarity propagation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Veraticus/tally/internal/classification"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/llm"
	"github.com/Veraticus/tally/internal/ml"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/pattern"
	"github.com/Veraticus/tally/internal/propagation"
	"github.com/Veraticus/tally/internal/service"
)

// Config holds thresholds for the engine.
type Config struct {
	RuleThreshold      float64
	AutoApplyThreshold float64
	MinTrainingSamples int
	TextTimeout        time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RuleThreshold:      0.8,
		AutoApplyThreshold: 0.7,
		MinTrainingSamples: 20,
		TextTimeout:        30 * time.Second,
	}
}

// Engine is the categorization orchestrator.
type Engine struct {
	store      service.Storage
	text       llm.TextClassifier
	classifier *ml.Classifier
	learner    pattern.FeedbackLearner
	propagator *propagation.Propagator
	heuristic  *classification.Heuristic
	config     Config
}

// New creates an engine. text may be nil when no external classifier is
// configured; a nil classifier gets an untrained one backed by store.
func New(store service.Storage, text llm.TextClassifier, classifier *ml.Classifier, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.RuleThreshold <= 0 {
		cfg.RuleThreshold = defaults.RuleThreshold
	}
	if cfg.AutoApplyThreshold <= 0 {
		cfg.AutoApplyThreshold = defaults.AutoApplyThreshold
	}
	if cfg.MinTrainingSamples <= 0 {
		cfg.MinTrainingSamples = defaults.MinTrainingSamples
	}
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = defaults.TextTimeout
	}
	if classifier == nil {
		classifier = ml.NewClassifier(store, store, ml.DefaultConfig())
	}

	return &Engine{
		store:      store,
		text:       text,
		classifier: classifier,
		learner:    pattern.NewLearner(store),
		propagator: propagation.New(store),
		heuristic:  classification.NewHeuristic(nil),
		config:     cfg,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// TextAvailable reports whether an external text classifier is configured.
func (e *Engine) TextAvailable() bool {
	return e.text != nil && e.text.Available()
}

// accountType resolves the type of the transaction's account. A dangling
// account reference is treated as personal.
func (e *Engine) accountType(ctx context.Context, accountID int64) (model.AccountType, error) {
	account, err := e.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			slog.Warn("Transaction references unknown account, assuming personal", "account_id", accountID)
			return model.AccountPersonal, nil
		}
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	return account.Type, nil
}

// accountTypes memoizes account lookups across a batch.
type accountTypes struct {
	engine *Engine
	types  map[int64]model.AccountType
}

func (e *Engine) newAccountTypes() *accountTypes {
	return &accountTypes{engine: e, types: make(map[int64]model.AccountType)}
}

func (a *accountTypes) get(ctx context.Context, accountID int64) (model.AccountType, error) {
	if at, ok := a.types[accountID]; ok {
		return at, nil
	}
	at, err := a.engine.accountType(ctx, accountID)
	if err != nil {
		return "", err
	}
	a.types[accountID] = at
	return at, nil
}

// categoryName returns the name of a category, or "" if it cannot be loaded.
func (e *Engine) categoryName(ctx context.Context, id *int64) string {
	if id == nil {
		return ""
	}
	category, err := e.store.GetCategoryByID(ctx, *id)
	if err != nil {
		slog.Debug("Failed to resolve category name", "category_id", *id, "error", err)
		return ""
	}
	return category.Name
}

func (e *Engine) loadTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	txn, err := e.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return txn, nil
}

// Train retrains the statistical classifier. minSamples <= 0 uses the
// configured minimum.
func (e *Engine) Train(ctx context.Context, minSamples int) (*ml.TrainResult, error) {
	if minSamples <= 0 {
		minSamples = e.config.MinTrainingSamples
	}
	return e.classifier.Train(ctx, minSamples)
}

// Predict returns the statistical classifier's prediction for a transaction.
func (e *Engine) Predict(ctx context.Context, id int64) (*model.Prediction, error) {
	if !e.classifier.HasModel() {
		return nil, common.ErrNoModel
	}
	txn, err := e.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	prediction, ok := e.classifier.Predict(ctx, *txn)
	if !ok {
		return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNoPrediction)
	}
	prediction.CategoryName = e.categoryName(ctx, &prediction.CategoryID)
	return prediction, nil
}

// AutoCategorize applies confident predictions to pending transactions.
// minConfidence <= 0 uses the configured auto-apply threshold.
func (e *Engine) AutoCategorize(ctx context.Context, minConfidence float64) (*ml.AutoResult, error) {
	if minConfidence <= 0 {
		minConfidence = e.config.AutoApplyThreshold
	}
	return e.classifier.AutoCategorizePending(ctx, minConfidence)
}

// ModelInfo describes the loaded statistical model.
func (e *Engine) ModelInfo() (ml.Info, bool) {
	return e.classifier.Info()
}

// FindSimilar lists transactions sharing a merchant key with id.
func (e *Engine) FindSimilar(ctx context.Context, id int64, includeCategorized bool) ([]model.Transaction, error) {
	txn, err := e.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.propagator.FindSimilar(ctx, *txn, includeCategorized)
}

// Propagate copies the category of id onto similar unconfirmed transactions.
func (e *Engine) Propagate(ctx context.Context, id int64) (*propagation.Result, error) {
	txn, err := e.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.propagator.Propagate(ctx, *txn)
}

// Rules returns every merchant rule.
func (e *Engine) Rules(ctx context.Context) ([]model.MerchantRule, error) {
	rules, err := e.store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rules, nil
}

// RuleStats summarizes the rule table.
func (e *Engine) RuleStats(ctx context.Context) (model.RuleStats, error) {
	rules, err := e.Rules(ctx)
	if err != nil {
		return model.RuleStats{}, err
	}
	return pattern.Stats(rules), nil
}

// Stats counts transactions by categorization state.
func (e *Engine) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := e.store.GetTransactionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// Categories returns every category.
func (e *Engine) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	return categories, nil
}

// Unreviewed returns up to limit transactions awaiting review, newest first.
func (e *Engine) Unreviewed(ctx context.Context, limit int) ([]model.Transaction, error) {
	txns, err := e.store.GetTransactions(ctx, service.TransactionFilter{
		State: service.StateUnreviewed,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load unreviewed transactions: %w", err)
	}
	return txns, nil
}

// Transaction loads one transaction.
func (e *Engine) Transaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return e.loadTransaction(ctx, id)
}

// Transactions loads the given transactions. Unknown ids are skipped.
func (e *Engine) Transactions(ctx context.Context, ids []int64) ([]model.Transaction, error) {
	txns, err := e.store.GetTransactionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}

// MissingIDs returns the requested ids absent from found, sorted and
// deduplicated. It is never nil.
func MissingIDs(requested []int64, found []model.Transaction) []int64 {
	seen := make(map[int64]bool, len(found))
	for _, txn := range found {
		seen[txn.ID] = true
	}

	missing := []int64{}
	for _, id := range requested {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing)
}

// Pending returns up to limit uncategorized, unconfirmed transactions.
// A limit of zero returns all of them.
func (e *Engine) Pending(ctx context.Context, limit int) ([]model.Transaction, error) {
	txns, err := e.store.GetTransactions(ctx, service.TransactionFilter{
		State: service.StatePending,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	return txns, nil
}
