// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/tally/internal/model"
)

// TransactionState narrows a transaction query by categorization state.
type TransactionState int

// Transaction state filters.
const (
	StateAny TransactionState = iota
	// StatePending selects unconfirmed rows with no category.
	StatePending
	// StateUnconfirmed selects every row that is not user confirmed.
	StateUnconfirmed
	// StateTrainable selects confirmed rows that carry a category.
	StateTrainable
	// StateUnreviewed selects rows still awaiting review.
	StateUnreviewed
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	AccountID *int64
	State     TransactionState
	Limit     int
	Offset    int
}

// SimilarityField is the column a similarity prefix is matched against.
type SimilarityField string

// Similarity fields.
const (
	SimilarByCode    SimilarityField = "code"
	SimilarByDetails SimilarityField = "details"
)

// SimilarityQuery finds transactions sharing a merchant prefix.
type SimilarityQuery struct {
	Field            SimilarityField
	Prefix           string
	ExcludeID        int64
	Limit            int
	IncludeConfirmed bool
}

// AutomatedUpdate is a category change made by a non-user tier.
// It never applies to user confirmed rows.
type AutomatedUpdate struct {
	CategoryID *int64
	// Classification is left unchanged when nil.
	Classification *model.Classification
	Source         model.CategorizationSource
	ID             int64
}

// TransactionStore persists transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactionsByIDs(ctx context.Context, ids []int64) ([]model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	FindSimilarTransactions(ctx context.Context, query SimilarityQuery) ([]model.Transaction, error)

	// ConfirmTransactions is the user path: it sets the category and
	// classification and locks the rows against automated updates.
	ConfirmTransactions(ctx context.Context, ids []int64, classification model.Classification, categoryID *int64) (int64, error)
	// ApplyAutomatedUpdate reports false when the row was confirmed or missing.
	ApplyAutomatedUpdate(ctx context.Context, update AutomatedUpdate) (bool, error)
	BulkApplyAutomated(ctx context.Context, ids []int64, classification model.Classification, categoryID *int64, source model.CategorizationSource) (int64, error)
	ResetTransaction(ctx context.Context, id int64) error

	GetTransactionStats(ctx context.Context) (*model.Stats, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoriesWithDescriptions(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error)
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
}

// RuleMutator receives the current rule for a key (nil if none) and returns
// the rule to store.
type RuleMutator func(existing *model.MerchantRule) (*model.MerchantRule, error)

// RuleStore persists merchant rules.
type RuleStore interface {
	// GetRules returns every rule ordered by confidence descending, then id.
	GetRules(ctx context.Context) ([]model.MerchantRule, error)
	GetRuleByKey(ctx context.Context, pattern string, matchType model.MatchType) (*model.MerchantRule, error)
	// UpsertRule runs mutate and the resulting write in one store transaction.
	UpsertRule(ctx context.Context, pattern string, matchType model.MatchType, mutate RuleMutator) (*model.MerchantRule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// ModelBlobStore persists opaque model artifacts by name.
type ModelBlobStore interface {
	LoadBlob(ctx context.Context, name string) ([]byte, error)
	// SaveBlob replaces the named blob atomically.
	SaveBlob(ctx context.Context, name string, data []byte) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionStore
	CategoryStore
	AccountStore
	RuleStore
	ModelBlobStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable reports whether a failed attempt may be repeated. Nil
	// retries everything not marked permanent.
	Retryable func(error) bool
}
