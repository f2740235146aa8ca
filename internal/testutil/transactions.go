package testutil

import (
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultDate is the date given to built transactions unless overridden.
var DefaultDate = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

// TransactionBuilder provides a fluent interface for constructing transactions.
type TransactionBuilder struct {
	txn model.Transaction
}

// NewTransaction starts a pending eftpos debit on accountID.
func NewTransaction(accountID int64) *TransactionBuilder {
	return &TransactionBuilder{txn: model.Transaction{
		AccountID: accountID,
		Date:      DefaultDate,
		Type:      "eftpos",
		Amount:    decimal.NewFromInt(-25),
	}}
}

// WithDetails sets the merchant text.
func (b *TransactionBuilder) WithDetails(details string) *TransactionBuilder {
	b.txn.Details = details
	return b
}

// WithCode sets the structured merchant code.
func (b *TransactionBuilder) WithCode(code string) *TransactionBuilder {
	b.txn.Code = code
	return b
}

// WithType sets the bank transaction type.
func (b *TransactionBuilder) WithType(txnType string) *TransactionBuilder {
	b.txn.Type = txnType
	return b
}

// WithAmount sets the signed amount.
func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.txn.Amount = decimal.RequireFromString(amount)
	return b
}

// On sets the transaction date.
func (b *TransactionBuilder) On(date time.Time) *TransactionBuilder {
	b.txn.Date = date
	return b
}

// WithExternalID sets the bank-assigned id.
func (b *TransactionBuilder) WithExternalID(id string) *TransactionBuilder {
	b.txn.ExternalID = id
	return b
}

// Categorized marks the transaction as categorized by an automated tier.
func (b *TransactionBuilder) Categorized(categoryID int64, source model.CategorizationSource) *TransactionBuilder {
	b.txn.CategoryID = &categoryID
	b.txn.Source = source
	return b
}

// Confirmed marks the transaction as reviewed and confirmed by the user.
func (b *TransactionBuilder) Confirmed(classification model.Classification, categoryID int64) *TransactionBuilder {
	b.txn.CategoryID = &categoryID
	b.txn.Classification = classification
	b.txn.Source = model.SourceUser
	b.txn.IsReviewed = true
	b.txn.IsUserConfirmed = true
	return b
}

// Build returns a copy of the built transaction.
func (b *TransactionBuilder) Build() model.Transaction {
	txn := b.txn
	if b.txn.CategoryID != nil {
		id := *b.txn.CategoryID
		txn.CategoryID = &id
	}
	return txn
}
