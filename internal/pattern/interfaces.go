// Package pattern matches transactions against learned merchant rules and
// learns those rules from user feedback.
package pattern

import (
	"context"

	"github.com/Veraticus/tally/internal/model"
)

// RuleMatcher finds the merchant rule that applies to a transaction.
type RuleMatcher interface {
	// Match returns the first rule, in descending confidence order, whose
	// pattern and predicates all hold.
	Match(txn model.Transaction, accountType model.AccountType) (*model.MerchantRule, bool)
}

// FeedbackLearner turns confirmed classifications into merchant rules.
type FeedbackLearner interface {
	Learn(ctx context.Context, txn model.Transaction, classification model.Classification, categoryID *int64, userConfirmed bool) (*model.MerchantRule, error)
}
