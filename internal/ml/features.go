// Package ml implements the trainable statistical classifier: TF-IDF text
// features over a random forest of CART trees, persisted as a versioned blob.
package ml

import (
	"regexp"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
)

var (
	cardNumberPattern    = regexp.MustCompile(`\d{4}[-*]+\d{4}[-*]+\d{4}`)
	maskedNumberPattern  = regexp.MustCompile(`\*+\d+`)
	companySuffixPattern = regexp.MustCompile(`\s+(nz|ltd|limited|inc|pty|co)\s*$`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Amount bins.
const (
	AmountTiny   = "tiny"
	AmountSmall  = "small"
	AmountMedium = "medium"
	AmountLarge  = "large"
	AmountXLarge = "xlarge"
)

var (
	binTiny   = decimal.NewFromInt(10)
	binSmall  = decimal.NewFromInt(50)
	binMedium = decimal.NewFromInt(100)
	binLarge  = decimal.NewFromInt(500)
)

// Features are the model inputs derived from one transaction.
type Features struct {
	Merchant  string
	AmountBin string
	Type      string
	Weekend   bool
	Debit     bool
}

// ExtractFeatures derives model features from a transaction.
func ExtractFeatures(txn model.Transaction) Features {
	return Features{
		Merchant:  CleanMerchant(txn.MerchantText()),
		AmountBin: AmountBin(txn.Amount),
		Type:      strings.ToLower(strings.TrimSpace(txn.Type)),
		Weekend:   txn.IsWeekend(),
		Debit:     txn.IsDebit(),
	}
}

// CleanMerchant lowercases merchant text and strips card numbers and
// company suffixes.
func CleanMerchant(s string) string {
	s = strings.ToLower(s)
	s = cardNumberPattern.ReplaceAllString(s, "")
	s = maskedNumberPattern.ReplaceAllString(s, "")
	s = companySuffixPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// AmountBin buckets the absolute amount.
func AmountBin(amount decimal.Decimal) string {
	abs := amount.Abs()
	switch {
	case abs.LessThan(binTiny):
		return AmountTiny
	case abs.LessThan(binSmall):
		return AmountSmall
	case abs.LessThan(binMedium):
		return AmountMedium
	case abs.LessThan(binLarge):
		return AmountLarge
	default:
		return AmountXLarge
	}
}

// Text renders the features as the document fed to the vectorizer.
func (f Features) Text() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{f.Merchant, f.Type, f.AmountBin} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if f.Weekend {
		parts = append(parts, "weekend")
	}
	if f.Debit {
		parts = append(parts, "debit")
	}
	return strings.Join(parts, " ")
}
