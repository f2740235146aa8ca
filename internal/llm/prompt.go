package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

const systemPrompt = `You are a financial transaction categorizer. Your job is to:
1. Determine if a transaction is PERSONAL or BUSINESS (especially important for business accounts)
2. Assign the most appropriate spending category from the list provided

Be conservative: if unsure whether something from a business account is personal, default to BUSINESS.

You MUST respond with ONLY valid JSON, no other text.`

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// buildPrompt renders the user prompt for one transaction.
func buildPrompt(txn model.Transaction, accountType model.AccountType, categories []model.Category) string {
	var b strings.Builder

	direction := "credit"
	if txn.IsDebit() {
		direction = "debit"
	}
	account := "PERSONAL"
	if accountType == model.AccountBusiness {
		account = "BUSINESS"
	}

	b.WriteString("Categorize this transaction:\n\n")
	b.WriteString("Transaction Details:\n")
	fmt.Fprintf(&b, "- Date: %s (%s)\n", txn.Date.Format("2006-01-02"), txn.Date.Weekday())
	fmt.Fprintf(&b, "- Merchant/Details: %s\n", orNA(txn.Details))
	fmt.Fprintf(&b, "- Type: %s\n", orNA(txn.Type))
	fmt.Fprintf(&b, "- Amount: $%s (%s)\n", txn.Amount.Abs().StringFixed(2), direction)
	fmt.Fprintf(&b, "- Particulars: %s\n", orNA(txn.Particulars))
	fmt.Fprintf(&b, "- Code: %s\n", orNA(txn.Code))
	fmt.Fprintf(&b, "- Reference: %s\n", orNA(txn.Reference))
	fmt.Fprintf(&b, "- Account Type: %s\n\n", account)

	b.WriteString("Available Categories:\n")
	for _, cat := range categories {
		kind := "Expense"
		if cat.IsIncome {
			kind = "Income"
		}
		fmt.Fprintf(&b, "- %s (ID: %d, %s)", cat.Name, cat.ID, kind)
		if cat.Description != "" {
			fmt.Fprintf(&b, ": %s", cat.Description)
		}
		if cat.Keywords != "" {
			fmt.Fprintf(&b, " [keywords: %s]", cat.Keywords)
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with ONLY this JSON structure (no other text):
{
    "classification": "personal" or "business",
    "category_id": <category ID number, or null if none fits>,
    "category_name": "<category name>",
    "confidence": <0.0 to 1.0>,
    "explanation": "<brief explanation>"
}`)

	return b.String()
}
