package model

import (
	"fmt"
	"strings"
)

// AccountType is the kind of bank account a transaction belongs to.
type AccountType string

// Account type constants.
const (
	AccountPersonal AccountType = "personal"
	AccountBusiness AccountType = "business"
	AccountSavings  AccountType = "savings"
)

// ParseAccountType converts a string into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	at := AccountType(strings.ToLower(strings.TrimSpace(s)))
	if !at.Valid() {
		return "", fmt.Errorf("invalid account type %q", s)
	}
	return at, nil
}

// Valid reports whether a is a known account type.
func (a AccountType) Valid() bool {
	switch a {
	case AccountPersonal, AccountBusiness, AccountSavings:
		return true
	}
	return false
}

// DefaultClassification is the classification given to new rows on this account.
func (a AccountType) DefaultClassification() Classification {
	if a == AccountBusiness {
		return ClassificationBusiness
	}
	return ClassificationPersonal
}

// Account is a bank account transactions are imported into.
type Account struct {
	Name string
	Type AccountType
	ID   int64
}
