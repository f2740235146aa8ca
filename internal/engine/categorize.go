package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/llm"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/pattern"
)

// Categorize suggests a category for txn without writing anything. Tiers
// are tried in order: a confident merchant rule, the external text
// classifier, then the keyword heuristic. forceExternal skips the rule tier.
func (e *Engine) Categorize(ctx context.Context, txn model.Transaction, forceExternal bool) (*model.Suggestion, error) {
	var matcher *pattern.MatcherImpl
	if !forceExternal {
		rules, err := e.store.GetRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		matcher = pattern.NewMatcher(rules)
	}

	accountType, err := e.accountType(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}

	return e.categorize(ctx, txn, matcher, accountType)
}

// categorize runs the tiers for one transaction. A nil matcher skips rules.
func (e *Engine) categorize(ctx context.Context, txn model.Transaction, matcher *pattern.MatcherImpl, accountType model.AccountType) (*model.Suggestion, error) {
	if matcher != nil {
		if rule, ok := matcher.Match(txn, accountType); ok && rule.Confidence >= e.config.RuleThreshold {
			return e.ruleSuggestion(ctx, txn, rule), nil
		}
	}

	if suggestion, ok := e.classifyExternal(ctx, txn, accountType); ok {
		return suggestion, nil
	}

	return e.classifyBasic(ctx, txn, accountType)
}

func (e *Engine) ruleSuggestion(ctx context.Context, txn model.Transaction, rule *model.MerchantRule) *model.Suggestion {
	ruleID := rule.ID
	return &model.Suggestion{
		TransactionID:  txn.ID,
		Classification: rule.Classification,
		CategoryID:     rule.CategoryID,
		CategoryName:   e.categoryName(ctx, rule.CategoryID),
		Confidence:     rule.Confidence,
		Source:         model.SourceRule,
		Explanation:    fmt.Sprintf("Matched rule: '%s'", rule.Pattern),
		RuleID:         &ruleID,
	}
}

// classifyExternal asks the text classifier. Every failure is logged and
// reported as false so the caller falls through to the heuristic.
func (e *Engine) classifyExternal(ctx context.Context, txn model.Transaction, accountType model.AccountType) (*model.Suggestion, bool) {
	if !e.TextAvailable() {
		return nil, false
	}

	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		slog.Warn("Failed to load categories for text classifier", "error", err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.TextTimeout)
	defer cancel()

	result, err := e.text.Classify(ctx, txn, accountType, categories)
	if err != nil {
		slog.Warn("Text classifier failed, falling back to heuristic",
			"transaction_id", txn.ID,
			"error", err)
		return nil, false
	}

	categoryID, categoryName, ok := e.textCategory(ctx, result)
	if !ok {
		slog.Debug("Text classifier found no category, falling back to heuristic",
			"transaction_id", txn.ID,
			"classification", result.Classification)
		return nil, false
	}

	explanation := result.Reasoning
	if explanation == "" {
		explanation = "Categorized by text classifier"
	}
	return &model.Suggestion{
		TransactionID:  txn.ID,
		Classification: result.Classification,
		CategoryID:     categoryID,
		CategoryName:   categoryName,
		Confidence:     result.Confidence,
		Source:         model.SourceLLM,
		Explanation:    explanation,
	}, true
}

// textCategory resolves the category of a text classifier result. A
// business result without one maps to the business sentinel; any other
// result without a known category is not a match. Nothing is created here.
func (e *Engine) textCategory(ctx context.Context, result *llm.TextResult) (*int64, string, bool) {
	if result.CategoryID != nil {
		return result.CategoryID, result.CategoryName, true
	}

	name := strings.TrimSpace(result.CategoryName)
	if name == "" {
		if result.Classification != model.ClassificationBusiness {
			return nil, "", false
		}
		name = model.NotApplicableBusiness
	}

	category, err := e.store.GetCategoryByName(ctx, name)
	switch {
	case err == nil:
		id := category.ID
		return &id, category.Name, true
	case errors.Is(err, common.ErrNotFound) && name == model.NotApplicableBusiness:
		// Applying the suggestion creates the sentinel.
		return nil, name, true
	case errors.Is(err, common.ErrNotFound):
		return nil, "", false
	default:
		slog.Warn("Failed to resolve text classifier category", "category", name, "error", err)
		return nil, "", false
	}
}

// classifyBasic runs the keyword heuristic and resolves its category name.
// A name with no matching category yields no category and zero confidence.
func (e *Engine) classifyBasic(ctx context.Context, txn model.Transaction, accountType model.AccountType) (*model.Suggestion, error) {
	suggestion := e.heuristic.Classify(txn, accountType == model.AccountBusiness)
	if suggestion.CategoryName == "" {
		return &suggestion, nil
	}

	category, err := e.store.GetCategoryByName(ctx, suggestion.CategoryName)
	switch {
	case err == nil:
		id := category.ID
		suggestion.CategoryID = &id
	case errors.Is(err, common.ErrNotFound):
		slog.Debug("Heuristic category does not exist", "category", suggestion.CategoryName)
		suggestion.CategoryName = ""
		suggestion.Confidence = 0
	default:
		return nil, fmt.Errorf("failed to resolve heuristic category: %w", err)
	}
	return &suggestion, nil
}

// CategorizeBatch suggests categories for txns, loading rules once. With
// rulesOnly, any matching rule is accepted regardless of confidence and
// unmatched transactions get an empty suggestion instead of falling through.
func (e *Engine) CategorizeBatch(ctx context.Context, txns []model.Transaction, rulesOnly bool) ([]model.Suggestion, error) {
	rules, err := e.store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	matcher := pattern.NewMatcher(rules)
	types := e.newAccountTypes()

	suggestions := make([]model.Suggestion, 0, len(txns))
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return suggestions, err
		}

		accountType, err := types.get(ctx, txn.AccountID)
		if err != nil {
			return suggestions, err
		}

		if !rulesOnly {
			suggestion, err := e.categorize(ctx, txn, matcher, accountType)
			if err != nil {
				return suggestions, err
			}
			suggestions = append(suggestions, *suggestion)
			continue
		}

		if rule, ok := matcher.Match(txn, accountType); ok {
			suggestions = append(suggestions, *e.ruleSuggestion(ctx, txn, rule))
			continue
		}
		suggestions = append(suggestions, model.Suggestion{
			TransactionID:  txn.ID,
			Classification: model.ClassificationUnclassified,
			Source:         model.SourceNone,
			Explanation:    "No matching rule",
		})
	}

	slog.Debug("Categorized batch", "count", len(suggestions), "rules_only", rulesOnly)
	return suggestions, nil
}

// CategorizeByID categorizes a stored transaction.
func (e *Engine) CategorizeByID(ctx context.Context, id int64, forceExternal bool) (*model.Suggestion, error) {
	txn, err := e.loadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Categorize(ctx, *txn, forceExternal)
}
