package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewCategories() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Groceries"},
		{ID: 2, Name: "Food & Dining"},
		{ID: 3, Name: "Transport"},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestPrompter_Review(t *testing.T) {
	txn := testutil.NewTransaction(1).WithDetails("COUNTDOWN PONSONBY").Build()
	suggestion := model.Suggestion{
		Classification: model.ClassificationPersonal,
		CategoryID:     int64Ptr(1),
		CategoryName:   "Groceries",
		Confidence:     0.9,
		Source:         model.SourceRule,
		Explanation:    "Matched rule: 'COUNTDOWN'",
	}

	tests := []struct {
		suggestion model.Suggestion
		want       Decision
		name       string
		input      string
	}{
		{
			name:       "accept suggestion",
			suggestion: suggestion,
			input:      "a\n",
			want:       Decision{Action: ActionAccept, Classification: model.ClassificationPersonal, CategoryID: int64Ptr(1)},
		},
		{
			name:       "override by number",
			suggestion: suggestion,
			input:      "p\n3\n",
			want:       Decision{Action: ActionOverride, Classification: model.ClassificationPersonal, CategoryID: int64Ptr(3)},
		},
		{
			name:       "override by name",
			suggestion: suggestion,
			input:      "P\nfood & dining\n",
			want:       Decision{Action: ActionOverride, Classification: model.ClassificationPersonal, CategoryID: int64Ptr(2)},
		},
		{
			name:       "business without category",
			suggestion: suggestion,
			input:      "b\n\n",
			want:       Decision{Action: ActionOverride, Classification: model.ClassificationBusiness},
		},
		{
			name:       "unknown category then valid",
			suggestion: suggestion,
			input:      "p\n9\nHobbies\n1\n",
			want:       Decision{Action: ActionOverride, Classification: model.ClassificationPersonal, CategoryID: int64Ptr(1)},
		},
		{
			name:       "invalid choice then skip",
			suggestion: suggestion,
			input:      "x\ns\n",
			want:       Decision{Action: ActionSkip},
		},
		{
			name:       "unclassified suggestion cannot be accepted",
			suggestion: model.Suggestion{Classification: model.ClassificationUnclassified, Source: model.SourceNone},
			input:      "a\nq\n",
			want:       Decision{Action: ActionQuit},
		},
		{
			name:       "end of input quits",
			suggestion: suggestion,
			input:      "",
			want:       Decision{Action: ActionQuit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)
			p.SetCategories(reviewCategories())

			got, err := p.Review(context.Background(), txn, tt.suggestion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "COUNTDOWN PONSONBY")
		})
	}
}

func TestPrompter_ReviewShowsOptions(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("x\nq\n"), &out)

	_, err := p.Review(context.Background(), testutil.NewTransaction(1).WithDetails("NEW WORLD").Build(), model.Suggestion{
		Classification: model.ClassificationPersonal,
		Source:         model.SourceDefault,
		Explanation:    "Default classification",
	})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "[A] Accept suggestion")
	assert.Contains(t, output, "Default classification")
	assert.Contains(t, output, "Invalid choice")
}

func TestPrompter_Stats(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("a\np\n\ns\nq\n"), &out)
	p.SetTotal(4)
	ctx := context.Background()
	txn := testutil.NewTransaction(1).WithDetails("Z ENERGY").Build()
	suggestion := model.Suggestion{Classification: model.ClassificationPersonal, Source: model.SourceDefault}

	var actions []Action
	for {
		d, err := p.Review(ctx, txn, suggestion)
		require.NoError(t, err)
		actions = append(actions, d.Action)
		if d.Action == ActionQuit {
			break
		}
	}

	assert.Equal(t, []Action{ActionAccept, ActionOverride, ActionSkip, ActionQuit}, actions)
	assert.Equal(t, ReviewStats{Reviewed: 3, Accepted: 1, Modified: 1, Skipped: 1}, p.Stats())

	p.ShowCompletion()
	assert.Contains(t, out.String(), "Review Complete")
}

func TestPrompter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPrompter(strings.NewReader("a\n"), &bytes.Buffer{}).Review(ctx, model.Transaction{}, model.Suggestion{})
	assert.ErrorIs(t, err, context.Canceled)
}
