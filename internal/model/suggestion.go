package model

// Suggestion is the engine's proposed categorization of one transaction.
type Suggestion struct {
	CategoryID     *int64               `json:"category_id"`
	RuleID         *int64               `json:"rule_id,omitempty"`
	Classification Classification       `json:"classification"`
	CategoryName   string               `json:"category_name,omitempty"`
	Source         CategorizationSource `json:"source"`
	Explanation    string               `json:"explanation"`
	TransactionID  int64                `json:"transaction_id"`
	Confidence     float64              `json:"confidence"`
}

// Prediction is a category predicted by the statistical classifier.
type Prediction struct {
	CategoryName  string  `json:"category_name,omitempty"`
	TransactionID int64   `json:"transaction_id"`
	CategoryID    int64   `json:"category_id"`
	Confidence    float64 `json:"confidence"`
}

// Stats counts transactions by categorization state.
type Stats struct {
	Total                 int `json:"total"`
	UserConfirmed         int `json:"user_confirmed"`
	AutoCategorized       int `json:"auto_categorized"`
	Uncategorized         int `json:"uncategorized"`
	Unclassified          int `json:"unclassified"`
	PersonalUncategorized int `json:"personal_uncategorized"`
	NeedsAttention        int `json:"needs_attention"`
}
