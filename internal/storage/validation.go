// Package storage provides the data persistence layer for tally.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid merchant rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.AccountID == 0 {
		return fmt.Errorf("%w: missing account ID", ErrInvalidTransaction)
	}
	if txn.Classification != "" && !txn.Classification.Valid() {
		return fmt.Errorf("%w: classification %q", ErrInvalidTransaction, txn.Classification)
	}
	if txn.Source != "" && !txn.Source.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidTransaction, txn.Source)
	}
	return nil
}

// validateRule validates a merchant rule before it is written.
func validateRule(rule *model.MerchantRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidRule)
	}
	if !rule.Classification.Valid() {
		return fmt.Errorf("%w: classification %q", ErrInvalidRule, rule.Classification)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	if rule.AccountType != nil && !rule.AccountType.Valid() {
		return fmt.Errorf("%w: account type %q", ErrInvalidRule, *rule.AccountType)
	}
	if _, err := model.ParseDayClass(string(rule.DayOfWeek)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// validateClassification rejects unknown classification values.
func validateClassification(c model.Classification) error {
	if !c.Valid() {
		return common.ValidationError("classification", "unknown value %q", c)
	}
	return nil
}
