package model

import (
	"strings"
	"time"
)

// NotApplicableBusiness is the reserved category assigned to business
// transactions that were confirmed without an explicit category.
const NotApplicableBusiness = "Not Applicable (Business)"

// Category represents a spending or income bucket.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string // Natural-language description for the text classifier
	Keywords    string // Natural-language keywords for the text classifier
	ID          int64
	IsIncome    bool
}

// HasNLDescription reports whether the category can be offered to the text classifier.
func (c *Category) HasNLDescription() bool {
	return strings.TrimSpace(c.Description) != "" || strings.TrimSpace(c.Keywords) != ""
}
