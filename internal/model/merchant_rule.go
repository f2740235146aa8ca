package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchType controls how a rule's pattern is compared with merchant text.
type MatchType string

// Match type constants.
const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startswith"
	MatchRegex      MatchType = "regex"
)

// ParseMatchType converts a string into a MatchType.
// Unrecognized values degrade to MatchContains.
func ParseMatchType(s string) MatchType {
	switch mt := MatchType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MatchExact, MatchContains, MatchStartsWith, MatchRegex:
		return mt
	default:
		return MatchContains
	}
}

// DayClass restricts a rule to certain days of the week.
type DayClass string

// Day class constants. DayAny places no restriction.
const (
	DayAny       DayClass = ""
	DayWeekend   DayClass = "weekend"
	DayWeekday   DayClass = "weekday"
	DayMonday    DayClass = "monday"
	DayTuesday   DayClass = "tuesday"
	DayWednesday DayClass = "wednesday"
	DayThursday  DayClass = "thursday"
	DayFriday    DayClass = "friday"
	DaySaturday  DayClass = "saturday"
	DaySunday    DayClass = "sunday"
)

// ParseDayClass converts a string into a DayClass.
func ParseDayClass(s string) (DayClass, error) {
	d := DayClass(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DayAny, DayWeekend, DayWeekday, DayMonday, DayTuesday, DayWednesday,
		DayThursday, DayFriday, DaySaturday, DaySunday:
		return d, nil
	}
	return "", fmt.Errorf("invalid day of week %q", s)
}

// Matches reports whether t falls within the day class.
func (d DayClass) Matches(t time.Time) bool {
	wd := t.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday
	switch d {
	case DayAny:
		return true
	case DayWeekend:
		return weekend
	case DayWeekday:
		return !weekend
	default:
		return strings.EqualFold(wd.String(), string(d))
	}
}

// Rule confidence bounds.
const (
	MaxRuleConfidence = 1.0
	MinRuleConfidence = 0.3
)

// MerchantRule is a learned mapping from a merchant pattern to a classification.
type MerchantRule struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AccountType     *AccountType     // Only match transactions on this account type
	MinAmount       *decimal.Decimal // Inclusive lower bound on the absolute amount
	MaxAmount       *decimal.Decimal // Inclusive upper bound on the absolute amount
	CategoryID      *int64
	Pattern         string
	MatchType       MatchType
	DayOfWeek       DayClass
	Classification  Classification
	ID              int64
	Confidence      float64
	TimesApplied    int
	TimesOverridden int
}

// Accuracy is the share of applications the user did not override.
func (r *MerchantRule) Accuracy() float64 {
	if r.TimesApplied == 0 {
		return 0
	}
	return float64(r.TimesApplied-r.TimesOverridden) / float64(r.TimesApplied)
}

// RuleStats summarizes the learned rule set.
type RuleStats struct {
	TotalRules      int     `json:"total_rules"`
	HighConfidence  int     `json:"high_confidence_rules"`
	TotalApplied    int     `json:"total_times_applied"`
	TotalOverridden int     `json:"total_times_overridden"`
	AccuracyRate    float64 `json:"accuracy_rate"`
}
