package api

import (
	"time"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type categorizeBatchRequest struct {
	IDs       []int64 `json:"ids" binding:"required,min=1"`
	RulesOnly bool    `json:"rules_only"`
}

// CategorizeBatchResponse lists suggestions for the transactions found and
// the requested ids that do not exist.
type CategorizeBatchResponse struct {
	Suggestions []model.Suggestion `json:"suggestions"`
	Missing     []int64            `json:"missing"`
}

type applyRequest struct {
	CategoryID     *int64 `json:"category_id"`
	Learn          *bool  `json:"learn"`
	Classification string `json:"classification" binding:"required"`
}

type bulkApplyRequest struct {
	CategoryID     *int64  `json:"category_id"`
	Classification string  `json:"classification" binding:"required"`
	IDs            []int64 `json:"ids" binding:"required,min=1"`
	Learn          bool    `json:"learn"`
}

type trainRequest struct {
	MinSamples int `json:"min_samples" binding:"gte=0"`
}

type autoCategorizeRequest struct {
	MinConfidence float64 `json:"min_confidence" binding:"gte=0,lte=1"`
}

// TransactionResponse is the JSON form of a transaction.
type TransactionResponse struct {
	Date            time.Time                  `json:"date"`
	CategoryID      *int64                     `json:"category_id"`
	Amount          decimal.Decimal            `json:"amount"`
	Type            string                     `json:"type,omitempty"`
	Details         string                     `json:"details,omitempty"`
	Particulars     string                     `json:"particulars,omitempty"`
	Code            string                     `json:"code,omitempty"`
	Reference       string                     `json:"reference,omitempty"`
	Classification  model.Classification       `json:"classification"`
	Source          model.CategorizationSource `json:"source"`
	ID              int64                      `json:"id"`
	AccountID       int64                      `json:"account_id"`
	IsReviewed      bool                       `json:"is_reviewed"`
	IsUserConfirmed bool                       `json:"is_user_confirmed"`
}

func newTransactionResponse(txn model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              txn.ID,
		AccountID:       txn.AccountID,
		Date:            txn.Date,
		Amount:          txn.Amount,
		Type:            txn.Type,
		Details:         txn.Details,
		Particulars:     txn.Particulars,
		Code:            txn.Code,
		Reference:       txn.Reference,
		CategoryID:      txn.CategoryID,
		Classification:  txn.Classification,
		Source:          txn.Source,
		IsReviewed:      txn.IsReviewed,
		IsUserConfirmed: txn.IsUserConfirmed,
	}
}

func newTransactionResponses(txns []model.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txns))
	for i, txn := range txns {
		out[i] = newTransactionResponse(txn)
	}
	return out
}

// RuleResponse is the JSON form of a merchant rule.
type RuleResponse struct {
	UpdatedAt       time.Time            `json:"updated_at"`
	AccountType     *model.AccountType   `json:"account_type,omitempty"`
	MinAmount       *decimal.Decimal     `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal     `json:"max_amount,omitempty"`
	CategoryID      *int64               `json:"category_id"`
	Pattern         string               `json:"pattern"`
	MatchType       model.MatchType      `json:"match_type"`
	DayOfWeek       model.DayClass       `json:"day_of_week,omitempty"`
	Classification  model.Classification `json:"classification"`
	ID              int64                `json:"id"`
	Confidence      float64              `json:"confidence"`
	Accuracy        float64              `json:"accuracy"`
	TimesApplied    int                  `json:"times_applied"`
	TimesOverridden int                  `json:"times_overridden"`
}

func newRuleResponse(rule model.MerchantRule) RuleResponse {
	return RuleResponse{
		ID:              rule.ID,
		Pattern:         rule.Pattern,
		MatchType:       rule.MatchType,
		AccountType:     rule.AccountType,
		MinAmount:       rule.MinAmount,
		MaxAmount:       rule.MaxAmount,
		DayOfWeek:       rule.DayOfWeek,
		Classification:  rule.Classification,
		CategoryID:      rule.CategoryID,
		Confidence:      rule.Confidence,
		Accuracy:        rule.Accuracy(),
		TimesApplied:    rule.TimesApplied,
		TimesOverridden: rule.TimesOverridden,
		UpdatedAt:       rule.UpdatedAt,
	}
}

// CategoryResponse is the JSON form of a category.
type CategoryResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	ID          int64  `json:"id"`
	IsIncome    bool   `json:"is_income"`
}

// FeedbackResponse reports the effects of applying feedback.
type FeedbackResponse struct {
	Rule           *RuleResponse       `json:"rule,omitempty"`
	Transaction    TransactionResponse `json:"transaction"`
	SimilarFound   int                 `json:"similar_found"`
	SimilarUpdated int64               `json:"similar_updated"`
}

func newFeedbackResponse(result *engine.FeedbackResult) FeedbackResponse {
	resp := FeedbackResponse{
		Transaction:    newTransactionResponse(*result.Transaction),
		SimilarFound:   result.SimilarFound,
		SimilarUpdated: result.SimilarUpdated,
	}
	if result.Rule != nil {
		rule := newRuleResponse(*result.Rule)
		resp.Rule = &rule
	}
	return resp
}
