package tui

import (
	"context"
	"time"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	loadTimeout    = 30 * time.Second
	suggestTimeout = 45 * time.Second
	applyTimeout   = 30 * time.Second
)

// loadQueue loads the unreviewed transactions and the category list.
func (m Model) loadQueue() tea.Cmd {
	reviewer, limit := m.reviewer, m.config.Limit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		txns, err := reviewer.Unreviewed(ctx, limit)
		if err != nil {
			return queueLoadedMsg{err: err}
		}
		categories, err := reviewer.Categories(ctx)
		if err != nil {
			return queueLoadedMsg{err: err}
		}
		return queueLoadedMsg{transactions: txns, categories: categories}
	}
}

// suggest asks the engine for a suggestion on txn.
func (m Model) suggest(txn model.Transaction) tea.Cmd {
	reviewer, force := m.reviewer, m.config.ForceExternal
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), suggestTimeout)
		defer cancel()

		suggestion, err := reviewer.Categorize(ctx, txn, force)
		return suggestionMsg{transactionID: txn.ID, suggestion: suggestion, err: err}
	}
}

// apply records the user's decision for one transaction.
func (m Model) apply(req engine.FeedbackRequest) tea.Cmd {
	reviewer := m.reviewer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		defer cancel()

		result, err := reviewer.ApplyFeedback(ctx, req)
		return appliedMsg{transactionID: req.TransactionID, result: result, err: err}
	}
}
