package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single imported bank transaction.
type Transaction struct {
	Date            time.Time
	Amount          decimal.Decimal // Signed; negative is a debit
	CategoryID      *int64
	Type            string // Bank transaction type, e.g. "eftpos" or "direct credit"
	Details         string // Merchant or description text
	Particulars     string
	Code            string // Structured merchant code
	Reference       string
	Classification  Classification
	Source          CategorizationSource
	ImportBatchID   string
	ExternalID      string // Bank-assigned id (OFX FITID), used to skip re-imports
	ID              int64
	AccountID       int64
	IsReviewed      bool
	IsUserConfirmed bool
}

// MerchantText returns the best available merchant identifier.
func (t *Transaction) MerchantText() string {
	for _, s := range []string{t.Code, t.Details, t.Particulars} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IsDebit reports whether money left the account.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsWeekend reports whether the transaction happened on a Saturday or Sunday.
func (t *Transaction) IsWeekend() bool {
	wd := t.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// HasCategory reports whether a category has been assigned.
func (t *Transaction) HasCategory() bool {
	return t.CategoryID != nil
}
