package classification

// KeywordRule maps merchant keywords to a category.
type KeywordRule struct {
	Category string
	Keywords []string
	// ForcePersonal marks purchases that are personal even on a business account.
	ForcePersonal bool
}

// DefaultKeywordRules returns the built-in keyword table, in evaluation order.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Category: "Food & Dining",
			Keywords: []string{"restaurant", "cafe", "coffee", "mcdonald", "burger", "pizza", "sushi",
				"thai", "indian", "chinese", "kebab", "subway", "kfc", "nando"},
		},
		{
			Category: "Groceries",
			Keywords: []string{"countdown", "new world", "pak n save", "paknsave", "supermarket",
				"fresh choice", "four square", "woolworths"},
		},
		{
			Category: "Transport",
			Keywords: []string{"bp", "z energy", "mobil", "caltex", "gull", "fuel", "petrol",
				"uber", "taxi", "parking", "parkable", "wilson parking", "auckland transport",
				"at hop", "snapper"},
		},
		{
			Category:      "Home & Garden",
			Keywords:      []string{"bunnings", "mitre 10", "mitre10", "placemakers", "hammer hardware"},
			ForcePersonal: true,
		},
		{
			Category: "Utilities",
			Keywords: []string{"power", "electricity", "gas", "water", "internet", "spark", "vodafone",
				"2degrees", "one nz", "chorus"},
		},
		{
			Category: "Entertainment",
			Keywords: []string{"netflix", "spotify", "disney", "amazon prime", "youtube", "cinema",
				"event", "ticketmaster", "imax"},
			ForcePersonal: true,
		},
		{
			Category: "Shopping",
			Keywords: []string{"amazon", "ebay", "trademe", "kmart", "the warehouse", "farmers",
				"briscoes", "rebel sport", "jb hi-fi"},
		},
		{
			Category: "Bank Fees",
			Keywords: []string{"bank fee", "account fee", "overdraft", "monthly fee"},
		},
	}
}

// incomeTypes are bank transaction types that always indicate income.
var incomeTypes = []string{"direct credit", "payment received", "salary", "wages"}
