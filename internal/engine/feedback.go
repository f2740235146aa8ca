package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/pattern"
	"github.com/Veraticus/tally/internal/service"
)

// FeedbackRequest is a user's categorization of one transaction.
type FeedbackRequest struct {
	CategoryID     *int64
	Classification model.Classification
	TransactionID  int64
	Learn          bool
}

// FeedbackResult reports the effects of ApplyFeedback.
type FeedbackResult struct {
	Transaction    *model.Transaction
	Rule           *model.MerchantRule
	SimilarFound   int
	SimilarUpdated int64
}

// BulkResult reports the effects of BulkApply.
type BulkResult struct {
	Missing []int64 `json:"missing"`
	Updated int64   `json:"updated"`
}

// ResetResult reports the effects of Reset.
type ResetResult struct {
	Prediction    *model.Prediction `json:"prediction,omitempty"`
	TransactionID int64             `json:"transaction_id"`
	Applied       bool              `json:"applied"`
}

// resolveCategory validates a user supplied classification and category.
// A business classification without a category gets the reserved
// not-applicable category.
func (e *Engine) resolveCategory(ctx context.Context, classification model.Classification, categoryID *int64) (*int64, error) {
	if !classification.Valid() {
		return nil, common.ValidationError("classification", "unknown value %q", classification)
	}

	if categoryID != nil {
		if _, err := e.store.GetCategoryByID(ctx, *categoryID); err != nil {
			return nil, fmt.Errorf("failed to load category: %w", err)
		}
		return categoryID, nil
	}

	if classification != model.ClassificationBusiness {
		return nil, nil
	}

	sentinel, err := e.store.GetOrCreateCategory(ctx, model.NotApplicableBusiness)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q category: %w", model.NotApplicableBusiness, err)
	}
	id := sentinel.ID
	return &id, nil
}

// ApplyFeedback confirms a user's categorization, optionally learns a
// merchant rule from it and propagates it to similar transactions.
func (e *Engine) ApplyFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	if _, err := e.loadTransaction(ctx, req.TransactionID); err != nil {
		return nil, err
	}

	categoryID, err := e.resolveCategory(ctx, req.Classification, req.CategoryID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.ConfirmTransactions(ctx, []int64{req.TransactionID}, req.Classification, categoryID); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	txn, err := e.loadTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	result := &FeedbackResult{Transaction: txn}

	if req.Learn {
		rule, err := e.learner.Learn(ctx, *txn, req.Classification, categoryID, true)
		if err != nil {
			slog.Warn("Failed to learn from feedback", "transaction_id", txn.ID, "error", err)
		}
		result.Rule = rule
	}

	propagated, err := e.propagator.Propagate(ctx, *txn)
	if err != nil {
		slog.Warn("Failed to propagate feedback", "transaction_id", txn.ID, "error", err)
	} else {
		result.SimilarFound = propagated.SimilarFound
		result.SimilarUpdated = propagated.Updated
	}

	slog.Info("Applied feedback",
		"transaction_id", txn.ID,
		"classification", req.Classification,
		"learned", result.Rule != nil,
		"similar_updated", result.SimilarUpdated)
	return result, nil
}

// BulkApply confirms one categorization across many transactions. Unknown
// ids are reported in Missing rather than failing the batch.
func (e *Engine) BulkApply(ctx context.Context, ids []int64, classification model.Classification, categoryID *int64, learn bool) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, common.ValidationError("ids", "at least one id is required")
	}

	resolved, err := e.resolveCategory(ctx, classification, categoryID)
	if err != nil {
		return nil, err
	}

	found, err := e.store.GetTransactionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	foundIDs := make([]int64, len(found))
	for i, txn := range found {
		foundIDs[i] = txn.ID
	}

	result := &BulkResult{Missing: MissingIDs(ids, found)}

	if len(foundIDs) == 0 {
		return result, nil
	}

	result.Updated, err = e.store.ConfirmTransactions(ctx, foundIDs, classification, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm transactions: %w", err)
	}

	if learn {
		for _, txn := range found {
			if _, err := e.learner.Learn(ctx, txn, classification, resolved, true); err != nil {
				slog.Warn("Failed to learn from bulk feedback", "transaction_id", txn.ID, "error", err)
			}
		}
	}

	slog.Info("Applied bulk feedback",
		"updated", result.Updated,
		"missing", len(result.Missing),
		"classification", classification)
	return result, nil
}

// ApplyRulesToPending categorizes pending transactions with any matching
// rule. Confirmed rows are never touched. It returns the number updated.
func (e *Engine) ApplyRulesToPending(ctx context.Context) (int, error) {
	rules, err := e.store.GetRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}
	matcher := pattern.NewMatcher(rules)

	pending, err := e.store.GetTransactions(ctx, service.TransactionFilter{State: service.StatePending})
	if err != nil {
		return 0, fmt.Errorf("failed to load pending transactions: %w", err)
	}

	types := e.newAccountTypes()
	updated := 0
	for _, txn := range pending {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		accountType, err := types.get(ctx, txn.AccountID)
		if err != nil {
			return updated, err
		}
		rule, ok := matcher.Match(txn, accountType)
		if !ok {
			continue
		}

		classification := rule.Classification
		applied, err := e.store.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{
			ID:             txn.ID,
			CategoryID:     rule.CategoryID,
			Classification: &classification,
			Source:         model.SourceRule,
		})
		if err != nil {
			return updated, fmt.Errorf("failed to apply rule to transaction %d: %w", txn.ID, err)
		}
		if applied {
			updated++
		}
	}

	slog.Info("Applied rules to pending transactions", "pending", len(pending), "updated", updated)
	return updated, nil
}

// Reset clears a transaction's categorization and unlocks it. With
// repredict, a confident model prediction is applied straight away.
func (e *Engine) Reset(ctx context.Context, id int64, repredict bool) (*ResetResult, error) {
	if err := e.store.ResetTransaction(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to reset transaction: %w", err)
	}
	result := &ResetResult{TransactionID: id}

	if !repredict || !e.classifier.HasModel() {
		return result, nil
	}

	txn, err := e.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	prediction, ok := e.classifier.Predict(ctx, *txn)
	if !ok {
		return result, nil
	}
	prediction.CategoryName = e.categoryName(ctx, &prediction.CategoryID)
	result.Prediction = prediction

	if prediction.Confidence < e.config.AutoApplyThreshold {
		return result, nil
	}

	categoryID := prediction.CategoryID
	result.Applied, err = e.store.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{
		ID:         id,
		CategoryID: &categoryID,
		Source:     model.SourceML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply prediction: %w", err)
	}
	return result, nil
}
