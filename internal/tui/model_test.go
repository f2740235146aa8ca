package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/testutil"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReviewer struct {
	loadErr     error
	applyErr    error
	txns        []model.Transaction
	categories  []model.Category
	suggestions map[int64]*model.Suggestion
	applied     []engine.FeedbackRequest
	mu          sync.Mutex
}

func (f *fakeReviewer) Unreviewed(_ context.Context, limit int) ([]model.Transaction, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if limit > 0 && limit < len(f.txns) {
		return f.txns[:limit], nil
	}
	return f.txns, nil
}

func (f *fakeReviewer) Categories(context.Context) ([]model.Category, error) {
	return f.categories, nil
}

func (f *fakeReviewer) Categorize(_ context.Context, txn model.Transaction, _ bool) (*model.Suggestion, error) {
	if s, ok := f.suggestions[txn.ID]; ok {
		return s, nil
	}
	return &model.Suggestion{
		TransactionID:  txn.ID,
		Classification: model.ClassificationPersonal,
		Source:         model.SourceDefault,
		Explanation:    "Default classification",
	}, nil
}

func (f *fakeReviewer) ApplyFeedback(_ context.Context, req engine.FeedbackRequest) (*engine.FeedbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applied = append(f.applied, req)
	return &engine.FeedbackResult{SimilarUpdated: 2}, nil
}

func newReviewer() *fakeReviewer {
	r := &fakeReviewer{
		txns: []model.Transaction{
			testutil.NewTransaction(1).WithDetails("COUNTDOWN PONSONBY").Build(),
			testutil.NewTransaction(1).WithDetails("Z ENERGY").Build(),
			testutil.NewTransaction(1).WithDetails("ACME CONSULTING").Build(),
		},
		categories: []model.Category{
			{ID: 1, Name: "Groceries"},
			{ID: 2, Name: "Transport"},
		},
		suggestions: map[int64]*model.Suggestion{},
	}
	return r.withIDs(1)
}

// withIDs numbers the transactions and gives the first a rule suggestion.
func (f *fakeReviewer) withIDs(categoryID int64) *fakeReviewer {
	for i := range f.txns {
		f.txns[i].ID = int64(i + 1)
	}
	f.suggestions[1] = &model.Suggestion{
		TransactionID:  1,
		Classification: model.ClassificationPersonal,
		CategoryID:     &categoryID,
		CategoryName:   "Groceries",
		Confidence:     0.9,
		Source:         model.SourceRule,
	}
	return f
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to m and resolves any command it returns, feeding the
// resulting messages back in until the model settles.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			return m
		}
		if _, ok := out.(tea.QuitMsg); ok {
			return m
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func start(t *testing.T, r Reviewer) Model {
	t.Helper()
	m := New(r, Config{})
	return step(t, m, m.Init()())
}

func TestModel_LoadsQueueAndSuggests(t *testing.T) {
	m := start(t, newReviewer())

	assert.Equal(t, StateReviewing, m.state)
	require.Len(t, m.queue, 3)
	require.NotNil(t, m.suggestion)
	assert.Equal(t, model.SourceRule, m.suggestion.Source)

	view := m.View()
	assert.Contains(t, view, "COUNTDOWN PONSONBY")
	assert.Contains(t, view, "Groceries")
	assert.Contains(t, view, "0/3")
}

func TestModel_AcceptAppliesSuggestion(t *testing.T) {
	r := newReviewer()
	m := start(t, r)

	m = step(t, m, runes("a"))

	require.Len(t, r.applied, 1)
	req := r.applied[0]
	assert.Equal(t, int64(1), req.TransactionID)
	assert.Equal(t, model.ClassificationPersonal, req.Classification)
	require.NotNil(t, req.CategoryID)
	assert.Equal(t, int64(1), *req.CategoryID)
	assert.True(t, req.Learn)

	assert.Equal(t, 1, m.index)
	assert.Equal(t, SessionStats{Accepted: 1, Propagated: 2}, m.Stats())
	assert.Contains(t, m.View(), "Z ENERGY")
}

func TestModel_OverrideWithCategory(t *testing.T) {
	r := newReviewer()
	m := start(t, r)

	m = step(t, m, runes("b"))
	assert.Equal(t, StateChoosingCategory, m.state)
	assert.Contains(t, m.View(), "Choose a business category")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor, "cursor stops at the last category")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, r.applied, 1)
	assert.Equal(t, model.ClassificationBusiness, r.applied[0].Classification)
	require.NotNil(t, r.applied[0].CategoryID)
	assert.Equal(t, int64(2), *r.applied[0].CategoryID)
	assert.Equal(t, 1, m.Stats().Modified)
}

func TestModel_OverrideWithoutCategory(t *testing.T) {
	r := newReviewer()
	m := start(t, r)

	m = step(t, m, runes("p"))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, r.applied, 1)
	assert.Nil(t, r.applied[0].CategoryID)
	assert.Equal(t, model.ClassificationPersonal, r.applied[0].Classification)
}

func TestModel_EscapeReturnsToReview(t *testing.T) {
	m := start(t, newReviewer())

	m = step(t, m, runes("p"))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateReviewing, m.state)
	assert.Equal(t, 0, m.index)
}

func TestModel_SkipToDone(t *testing.T) {
	r := newReviewer()
	m := start(t, r)

	for i := 0; i < 3; i++ {
		m = step(t, m, runes("s"))
	}

	assert.Equal(t, StateDone, m.state)
	assert.Empty(t, r.applied)
	assert.Equal(t, 3, m.Stats().Skipped)
	assert.Contains(t, m.View(), "Review complete")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(Model).quitting)
}

func TestModel_AcceptIgnoredWithoutClassification(t *testing.T) {
	r := newReviewer()
	r.suggestions[1] = &model.Suggestion{
		TransactionID:  1,
		Classification: model.ClassificationUnclassified,
		Source:         model.SourceNone,
	}
	m := start(t, r)

	m = step(t, m, runes("a"))
	assert.Empty(t, r.applied)
	assert.Equal(t, StateReviewing, m.state)
}

func TestModel_ApplyErrorStays(t *testing.T) {
	r := newReviewer()
	r.applyErr = errors.New("database is locked")
	m := start(t, r)

	m = step(t, m, runes("a"))

	assert.Equal(t, StateReviewing, m.state)
	assert.Equal(t, 0, m.index)
	assert.Zero(t, m.Stats().Accepted)
	assert.Contains(t, m.View(), "database is locked")
}

func TestModel_LoadError(t *testing.T) {
	r := newReviewer()
	r.loadErr = errors.New("no database")
	m := start(t, r)

	assert.Equal(t, StateDone, m.state)
	assert.Contains(t, m.View(), "Could not load transactions")
}

func TestModel_EmptyQueue(t *testing.T) {
	m := start(t, &fakeReviewer{})
	assert.Equal(t, StateDone, m.state)
	assert.Contains(t, m.View(), "Nothing to review")
}

func TestModel_StaleSuggestionIgnored(t *testing.T) {
	m := start(t, newReviewer())
	m = step(t, m, runes("s"))

	stale := suggestionMsg{transactionID: 1, suggestion: &model.Suggestion{CategoryName: "stale"}}
	m = step(t, m, stale)
	require.NotNil(t, m.suggestion)
	assert.NotEqual(t, "stale", m.suggestion.CategoryName)
}

func TestModel_Quit(t *testing.T) {
	m := start(t, newReviewer())

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}

func TestModel_HelpToggle(t *testing.T) {
	m := start(t, newReviewer())
	assert.False(t, m.help.ShowAll)

	m = step(t, m, runes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "choose category")
}

func TestModel_Limit(t *testing.T) {
	m := New(newReviewer(), Config{Limit: 1})
	m = step(t, m, m.Init()())
	assert.Len(t, m.queue, 1)
}
