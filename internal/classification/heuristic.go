// Package classification provides the static keyword classifier used when no
// learned rule or external classifier can decide.
package classification

import (
	"slices"
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

// Heuristic confidences.
const (
	KeywordConfidence = 0.7
	IncomeConfidence  = 0.9
)

// SalaryCategory is the category assigned to income transactions.
const SalaryCategory = "Salary"

// Heuristic classifies transactions with a fixed keyword table.
type Heuristic struct {
	rules []KeywordRule
}

// NewHeuristic creates a classifier over rules. A nil table uses the defaults.
func NewHeuristic(rules []KeywordRule) *Heuristic {
	if rules == nil {
		rules = DefaultKeywordRules()
	}
	return &Heuristic{rules: rules}
}

// ClassifyBasic classifies txn using the default keyword table.
func ClassifyBasic(txn model.Transaction, isBusinessAccount bool) model.Suggestion {
	return defaultHeuristic.Classify(txn, isBusinessAccount)
}

var defaultHeuristic = NewHeuristic(nil)

// Classify returns a suggestion with the category given by name only;
// callers resolve it to an id.
func (h *Heuristic) Classify(txn model.Transaction, isBusinessAccount bool) model.Suggestion {
	classification := model.ClassificationPersonal
	if isBusinessAccount {
		classification = model.ClassificationBusiness
	}

	suggestion := model.Suggestion{
		TransactionID:  txn.ID,
		Classification: classification,
		Source:         model.SourceDefault,
		Explanation:    "Default classification",
	}

	if isIncomeType(txn.Type) {
		suggestion.Classification = model.ClassificationPersonal
		suggestion.CategoryName = SalaryCategory
		suggestion.Confidence = IncomeConfidence
		suggestion.Explanation = "Income transaction"
		return suggestion
	}

	text := strings.ToLower(strings.Join([]string{txn.Details, txn.Code, txn.Particulars}, " "))
	for _, rule := range h.rules {
		keyword, ok := matchKeyword(text, rule.Keywords)
		if !ok {
			continue
		}

		suggestion.CategoryName = rule.Category
		suggestion.Confidence = KeywordConfidence
		suggestion.Explanation = "Matched keyword '" + keyword + "'"
		if rule.ForcePersonal && isBusinessAccount {
			suggestion.Classification = model.ClassificationPersonal
			suggestion.Explanation += " (typically personal expense)"
		}
		return suggestion
	}

	return suggestion
}

// isIncomeType matches the whole type, so "direct credit reversal" is not
// income.
func isIncomeType(txnType string) bool {
	return slices.Contains(incomeTypes, strings.ToLower(strings.TrimSpace(txnType)))
}

func matchKeyword(details string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(details, kw) {
			return kw, true
		}
	}
	return "", false
}
