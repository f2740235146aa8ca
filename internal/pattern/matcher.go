package pattern

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

// MatcherImpl implements RuleMatcher over a fixed rule set.
type MatcherImpl struct {
	compiledRegex map[int]*regexp.Regexp // keyed by position in rules
	rules         []model.MerchantRule
}

var _ RuleMatcher = (*MatcherImpl)(nil)

// NewMatcher creates a matcher over a copy of rules, ordered by confidence
// descending with ties broken by id.
func NewMatcher(rules []model.MerchantRule) *MatcherImpl {
	sorted := make([]model.MerchantRule, len(rules))
	copy(sorted, rules)
	sortByConfidence(sorted)

	m := &MatcherImpl{
		rules:         sorted,
		compiledRegex: make(map[int]*regexp.Regexp),
	}

	// Pre-compile regex patterns
	for i, rule := range sorted {
		if rule.MatchType != model.MatchRegex {
			continue
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			slog.Warn("Skipping rule with invalid regex", "rule_id", rule.ID, "pattern", rule.Pattern, "error", err)
			continue
		}
		m.compiledRegex[i] = re
	}

	return m
}

// Match returns the first rule whose pattern and predicates hold.
func Match(txn model.Transaction, rules []model.MerchantRule, accountType model.AccountType) (*model.MerchantRule, bool) {
	return NewMatcher(rules).Match(txn, accountType)
}

// Match implements RuleMatcher.
func (m *MatcherImpl) Match(txn model.Transaction, accountType model.AccountType) (*model.MerchantRule, bool) {
	merchant := strings.ToLower(txn.Details)

	for i := range m.rules {
		if m.matchesRule(txn, merchant, accountType, i) {
			matched := m.rules[i]
			return &matched, true
		}
	}
	return nil, false
}

// Rules returns the matcher's rules in evaluation order.
func (m *MatcherImpl) Rules() []model.MerchantRule {
	return m.rules
}

func (m *MatcherImpl) matchesRule(txn model.Transaction, merchant string, accountType model.AccountType, idx int) bool {
	rule := &m.rules[idx]
	if !m.matchesPattern(merchant, idx) {
		return false
	}

	if rule.AccountType != nil && *rule.AccountType != accountType {
		return false
	}

	if !matchesAmount(txn, rule) {
		return false
	}

	return rule.DayOfWeek.Matches(txn.Date)
}

// matchesPattern compares the lowercased merchant text with the rule pattern.
func (m *MatcherImpl) matchesPattern(merchant string, idx int) bool {
	rule := &m.rules[idx]
	pattern := strings.ToLower(rule.Pattern)

	switch rule.MatchType {
	case model.MatchExact:
		return merchant == pattern
	case model.MatchStartsWith:
		return strings.HasPrefix(merchant, pattern)
	case model.MatchRegex:
		re, ok := m.compiledRegex[idx]
		return ok && re.MatchString(merchant)
	case model.MatchContains:
		return strings.Contains(merchant, pattern)
	default:
		return strings.Contains(merchant, pattern)
	}
}

// matchesAmount checks the absolute amount against the rule's bounds.
func matchesAmount(txn model.Transaction, rule *model.MerchantRule) bool {
	amount := txn.Amount.Abs()
	if rule.MinAmount != nil && amount.LessThan(*rule.MinAmount) {
		return false
	}
	if rule.MaxAmount != nil && amount.GreaterThan(*rule.MaxAmount) {
		return false
	}
	return true
}

func sortByConfidence(rules []model.MerchantRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		return rules[i].ID < rules[j].ID
	})
}
