package pattern

import "github.com/Veraticus/tally/internal/model"

// HighConfidence is the confidence at which a rule counts as trusted.
const HighConfidence = 0.8

// Stats summarizes a rule set.
func Stats(rules []model.MerchantRule) model.RuleStats {
	stats := model.RuleStats{TotalRules: len(rules)}
	for _, rule := range rules {
		if rule.Confidence >= HighConfidence {
			stats.HighConfidence++
		}
		stats.TotalApplied += rule.TimesApplied
		stats.TotalOverridden += rule.TimesOverridden
	}
	if stats.TotalApplied > 0 {
		stats.AccuracyRate = float64(stats.TotalApplied-stats.TotalOverridden) / float64(stats.TotalApplied)
	}
	return stats
}
