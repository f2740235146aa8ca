package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Learning constants.
const (
	ConfirmedRuleConfidence   = 0.8
	UnconfirmedRuleConfidence = 0.6
	AgreementStep             = 0.05
	OverrideStep              = 0.1
)

// chainPattern collapses branch-specific merchant strings of a store chain
// into one contains-rule.
type chainPattern struct {
	re         *regexp.Regexp
	simplified string
}

var chainPatterns = []chainPattern{
	{regexp.MustCompile(`(?i)countdown\s+\w+`), "Countdown"},
	{regexp.MustCompile(`(?i)new world\s+\w+`), "New World"},
	{regexp.MustCompile(`(?i)pak.?n.?save\s+\w+`), "Pak n Save"},
	{regexp.MustCompile(`(?i)bp\s+\w+`), "BP"},
	{regexp.MustCompile(`(?i)z\s+\w+`), "Z "},
	{regexp.MustCompile(`(?i)bunnings\s+\w+`), "Bunnings"},
}

// NormalizeMerchant returns the rule key for a merchant string. Chain stores
// map to their brand with MatchContains; everything else is an exact match
// on the literal text.
func NormalizeMerchant(merchant string) (string, model.MatchType) {
	for _, cp := range chainPatterns {
		if cp.re.MatchString(merchant) {
			return cp.simplified, model.MatchContains
		}
	}
	return merchant, model.MatchExact
}

// Learner updates merchant rules from user feedback.
type Learner struct {
	store service.RuleStore
}

var _ FeedbackLearner = (*Learner)(nil)

// NewLearner creates a learner backed by store.
func NewLearner(store service.RuleStore) *Learner {
	return &Learner{store: store}
}

// Learn creates or reinforces the rule for the transaction's merchant.
// It returns nil without error when the transaction has no merchant text.
func (l *Learner) Learn(ctx context.Context, txn model.Transaction, classification model.Classification, categoryID *int64, userConfirmed bool) (*model.MerchantRule, error) {
	merchant := strings.TrimSpace(txn.Details)
	if merchant == "" {
		return nil, nil
	}
	if !classification.Valid() {
		return nil, fmt.Errorf("cannot learn from classification %q", classification)
	}

	pattern, matchType := NormalizeMerchant(merchant)

	rule, err := l.store.UpsertRule(ctx, pattern, matchType, func(existing *model.MerchantRule) (*model.MerchantRule, error) {
		if existing == nil {
			return newRule(classification, categoryID, userConfirmed), nil
		}
		if !userConfirmed {
			return nil, nil
		}
		return reinforce(existing, classification, categoryID), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to learn rule for %q: %w", merchant, err)
	}

	if rule != nil {
		slog.Debug("Learned merchant rule",
			"pattern", rule.Pattern,
			"match_type", rule.MatchType,
			"confidence", rule.Confidence,
			"times_applied", rule.TimesApplied)
	}
	return rule, nil
}

func newRule(classification model.Classification, categoryID *int64, userConfirmed bool) *model.MerchantRule {
	confidence := UnconfirmedRuleConfidence
	if userConfirmed {
		confidence = ConfirmedRuleConfidence
	}
	return &model.MerchantRule{
		Classification: classification,
		CategoryID:     categoryID,
		Confidence:     confidence,
		TimesApplied:   1,
	}
}

// reinforce applies one confirmation to an existing rule. Agreement raises
// confidence toward 1.0; disagreement lowers it toward 0.3 and takes on the
// new decision.
func reinforce(existing *model.MerchantRule, classification model.Classification, categoryID *int64) *model.MerchantRule {
	rule := *existing
	rule.TimesApplied++

	if rule.Classification == classification {
		rule.Confidence = math.Min(model.MaxRuleConfidence, round4(rule.Confidence+AgreementStep))
		return &rule
	}

	rule.TimesOverridden++
	rule.Confidence = math.Max(model.MinRuleConfidence, round4(rule.Confidence-OverrideStep))
	rule.Classification = classification
	rule.CategoryID = categoryID
	return &rule
}

// round4 drops float noise so repeated steps land exactly on the bounds.
func round4(c float64) float64 {
	return math.Round(c*1e4) / 1e4
}
