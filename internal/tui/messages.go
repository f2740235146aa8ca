package tui

import (
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
)

type queueLoadedMsg struct {
	err          error
	transactions []model.Transaction
	categories   []model.Category
}

type suggestionMsg struct {
	err           error
	suggestion    *model.Suggestion
	transactionID int64
}

type appliedMsg struct {
	err           error
	result        *engine.FeedbackResult
	transactionID int64
}
