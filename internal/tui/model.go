// Package tui implements the interactive review screen.
package tui

import (
	"context"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Reviewer is the part of the engine the review screen drives.
type Reviewer interface {
	Unreviewed(ctx context.Context, limit int) ([]model.Transaction, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Categorize(ctx context.Context, txn model.Transaction, forceExternal bool) (*model.Suggestion, error)
	ApplyFeedback(ctx context.Context, req engine.FeedbackRequest) (*engine.FeedbackResult, error)
}

// Config controls a review session.
type Config struct {
	Theme         *Theme
	Limit         int
	ForceExternal bool
	NoLearn       bool
}

// State represents the current state of the TUI.
type State int

const (
	StateLoading State = iota
	StateReviewing
	StateChoosingCategory
	StateApplying
	StateDone
)

// SessionStats counts what happened during a review session.
type SessionStats struct {
	Accepted   int
	Modified   int
	Skipped    int
	Propagated int64
}

// Model holds the review screen state.
type Model struct {
	reviewer       Reviewer
	lastError      error
	suggestion     *model.Suggestion
	theme          Theme
	help           help.Model
	keymap         KeyMap
	config         Config
	queue          []model.Transaction
	categories     []model.Category
	classification model.Classification
	stats          SessionStats
	index          int
	cursor         int
	width          int
	height         int
	state          State
	accepted       bool
	quitting       bool
}

// New creates a review model.
func New(reviewer Reviewer, cfg Config) Model {
	theme := DefaultTheme()
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}
	return Model{
		theme:    theme,
		reviewer: reviewer,
		config:   cfg,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		state:    StateLoading,
	}
}

// Stats returns the session counters.
func (m Model) Stats() SessionStats {
	return m.stats
}

// Init starts loading the review queue.
func (m Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case queueLoadedMsg:
		if msg.err != nil {
			m.lastError = msg.err
			m.state = StateDone
			return m, nil
		}
		m.queue = msg.transactions
		m.categories = msg.categories
		return m, m.start(0)

	case suggestionMsg:
		if txn, ok := m.current(); !ok || txn.ID != msg.transactionID {
			return m, nil
		}
		m.suggestion = msg.suggestion
		m.lastError = msg.err
		return m, nil

	case appliedMsg:
		if msg.err != nil {
			m.lastError = msg.err
			m.state = StateReviewing
			return m, nil
		}
		if m.accepted {
			m.stats.Accepted++
		} else {
			m.stats.Modified++
		}
		if msg.result != nil {
			m.stats.Propagated += msg.result.SimilarUpdated
		}
		return m, m.start(m.index + 1)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keymap.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch m.state {
	case StateReviewing:
		return m.handleReviewKey(msg)
	case StateChoosingCategory:
		return m.handleCategoryKey(msg)
	case StateDone:
		if key.Matches(msg, m.keymap.Select) {
			m.quitting = true
			return m, tea.Quit
		}
	case StateLoading, StateApplying:
	}
	return m, nil
}

func (m Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Accept):
		if !m.canAccept() {
			return m, nil
		}
		return m.submit(m.suggestion.Classification, m.suggestion.CategoryID, true)

	case key.Matches(msg, m.keymap.Personal):
		m.classification = model.ClassificationPersonal
		m.state = StateChoosingCategory
		m.cursor = 0

	case key.Matches(msg, m.keymap.Business):
		m.classification = model.ClassificationBusiness
		m.state = StateChoosingCategory
		m.cursor = 0

	case key.Matches(msg, m.keymap.Skip):
		m.stats.Skipped++
		return m, m.start(m.index + 1)
	}
	return m, nil
}

// handleCategoryKey moves through the category list. Row zero means no
// category.
func (m Model) handleCategoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.categories) {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Back):
		m.state = StateReviewing
	case key.Matches(msg, m.keymap.Select):
		var categoryID *int64
		if m.cursor > 0 {
			id := m.categories[m.cursor-1].ID
			categoryID = &id
		}
		return m.submit(m.classification, categoryID, false)
	}
	return m, nil
}

func (m Model) submit(classification model.Classification, categoryID *int64, accepted bool) (tea.Model, tea.Cmd) {
	txn, ok := m.current()
	if !ok {
		return m, nil
	}
	m.accepted = accepted
	m.state = StateApplying
	m.lastError = nil
	return m, m.apply(engine.FeedbackRequest{
		TransactionID:  txn.ID,
		Classification: classification,
		CategoryID:     categoryID,
		Learn:          !m.config.NoLearn,
	})
}

// start moves to queue position i and requests its suggestion.
func (m *Model) start(i int) tea.Cmd {
	m.index = i
	m.suggestion = nil
	m.lastError = nil
	if i >= len(m.queue) {
		m.state = StateDone
		return nil
	}
	m.state = StateReviewing
	return m.suggest(m.queue[i])
}

func (m Model) current() (model.Transaction, bool) {
	if m.index < 0 || m.index >= len(m.queue) {
		return model.Transaction{}, false
	}
	return m.queue[m.index], true
}

func (m Model) canAccept() bool {
	return m.suggestion != nil && m.suggestion.Classification != model.ClassificationUnclassified
}
