package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/llm"
	"github.com/Veraticus/tally/internal/ml"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeText is a scripted text classifier.
type fakeText struct {
	err          error
	result       *llm.TextResult
	accountTypes []model.AccountType
	mu           sync.Mutex
	available    bool
}

func (f *fakeText) Available() bool { return f.available }

func (f *fakeText) Classify(_ context.Context, _ model.Transaction, accountType model.AccountType, _ []model.Category) (*llm.TextResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountTypes = append(f.accountTypes, accountType)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeText) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accountTypes)
}

type fixture struct {
	db       *testutil.TestDB
	engine   *Engine
	personal int64
	business int64
}

func newFixture(t *testing.T, text llm.TextClassifier) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)

	cfg := ml.DefaultConfig()
	cfg.Forest.Trees = 10
	classifier := ml.NewClassifier(db.Storage, db.Storage, cfg)

	return &fixture{
		db:       db,
		engine:   New(db.Storage, text, classifier, DefaultConfig()),
		personal: db.Account("Everyday", model.AccountPersonal),
		business: db.Account("Company", model.AccountBusiness),
	}
}

func (f *fixture) addRule(t *testing.T, pattern string, matchType model.MatchType, categoryID int64, confidence float64) model.MerchantRule {
	t.Helper()
	rule, err := f.db.Storage.UpsertRule(context.Background(), pattern, matchType, func(*model.MerchantRule) (*model.MerchantRule, error) {
		return &model.MerchantRule{
			Classification: model.ClassificationPersonal,
			CategoryID:     &categoryID,
			Confidence:     confidence,
			TimesApplied:   1,
		}, nil
	})
	require.NoError(t, err)
	return *rule
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestNew_AppliesDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage, nil, nil, Config{})

	assert.Equal(t, DefaultConfig(), e.Config())
	assert.False(t, e.TextAvailable())
	_, ok := e.ModelInfo()
	assert.False(t, ok)
}

func TestEngine_Categorize(t *testing.T) {
	tests := []struct {
		text            *fakeText
		setup           func(t *testing.T, f *fixture)
		name            string
		details         string
		wantCategory    testutil.CategoryName
		wantSource      model.CategorizationSource
		wantExplanation string
		wantConfidence  float64
		business        bool
		forceExternal   bool
		wantTextCalls   int
	}{
		{
			name:    "confident rule wins",
			details: "Countdown Ponsonby",
			setup: func(t *testing.T, f *fixture) {
				f.addRule(t, "Countdown", model.MatchContains, f.db.CategoryID(testutil.CategoryGroceries), 0.85)
			},
			text:            &fakeText{available: true},
			wantCategory:    testutil.CategoryGroceries,
			wantSource:      model.SourceRule,
			wantExplanation: "Matched rule: 'Countdown'",
			wantConfidence:  0.85,
		},
		{
			name:    "weak rule falls through to heuristic",
			details: "Countdown Ponsonby",
			setup: func(t *testing.T, f *fixture) {
				f.addRule(t, "Countdown", model.MatchContains, f.db.CategoryID(testutil.CategoryTransport), 0.6)
			},
			wantCategory:    testutil.CategoryGroceries,
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'countdown'",
			wantConfidence:  0.7,
		},
		{
			name:    "force external skips rules",
			details: "Countdown Ponsonby",
			setup: func(t *testing.T, f *fixture) {
				f.addRule(t, "Countdown", model.MatchContains, f.db.CategoryID(testutil.CategoryGroceries), 0.95)
			},
			text: &fakeText{available: true, result: &llm.TextResult{
				Classification: model.ClassificationBusiness,
				CategoryName:   "Food & Dining",
				Reasoning:      "Client lunch",
				Confidence:     0.9,
			}},
			business:        true,
			forceExternal:   true,
			wantCategory:    testutil.CategoryDining,
			wantSource:      model.SourceLLM,
			wantExplanation: "Client lunch",
			wantConfidence:  0.9,
			wantTextCalls:   1,
		},
		{
			name:            "text classifier error falls through",
			details:         "Uber trip",
			text:            &fakeText{available: true, err: errors.New("boom")},
			wantCategory:    testutil.CategoryTransport,
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'uber'",
			wantConfidence:  0.7,
			wantTextCalls:   1,
		},
		{
			name:    "text result without category falls through",
			details: "Countdown Ponsonby",
			text: &fakeText{available: true, result: &llm.TextResult{
				Classification: model.ClassificationPersonal,
				Confidence:     0.9,
			}},
			wantCategory:    testutil.CategoryGroceries,
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'countdown'",
			wantConfidence:  0.7,
			wantTextCalls:   1,
		},
		{
			name:    "text result with unknown category falls through",
			details: "Uber trip",
			text: &fakeText{available: true, result: &llm.TextResult{
				Classification: model.ClassificationPersonal,
				CategoryName:   "Pets",
				Confidence:     0.9,
			}},
			wantCategory:    testutil.CategoryTransport,
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'uber'",
			wantConfidence:  0.7,
			wantTextCalls:   1,
		},
		{
			name:            "unavailable text classifier is not called",
			details:         "Uber trip",
			text:            &fakeText{available: false},
			wantCategory:    testutil.CategoryTransport,
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'uber'",
			wantConfidence:  0.7,
		},
		{
			name:            "heuristic category missing from store",
			details:         "Netflix subscription",
			wantSource:      model.SourceDefault,
			wantExplanation: "Matched keyword 'netflix' (typically personal expense)",
			business:        true,
		},
		{
			name:            "nothing matches",
			details:         "Acme Widgets Ltd",
			wantSource:      model.SourceDefault,
			wantExplanation: "Default classification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var text llm.TextClassifier
			if tt.text != nil {
				text = tt.text
			}
			f := newFixture(t, text)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			accountID := f.personal
			if tt.business {
				accountID = f.business
			}
			txn := testutil.NewTransaction(accountID).WithDetails(tt.details).Build()

			got, err := f.engine.Categorize(context.Background(), txn, tt.forceExternal)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.wantExplanation, got.Explanation)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			if tt.wantCategory == "" {
				assert.Nil(t, got.CategoryID)
				assert.Empty(t, got.CategoryName)
			} else {
				assert.Equal(t, tt.wantCategory.String(), got.CategoryName)
				require.NotNil(t, got.CategoryID)
				assert.Equal(t, f.db.CategoryID(tt.wantCategory), *got.CategoryID)
			}

			if tt.text != nil {
				assert.Equal(t, tt.wantTextCalls, tt.text.calls())
				if tt.business && tt.wantTextCalls > 0 {
					assert.Equal(t, model.AccountBusiness, tt.text.accountTypes[0])
				}
			}
		})
	}
}

func TestEngine_Categorize_UnknownAccountIsPersonal(t *testing.T) {
	text := &fakeText{available: true, result: &llm.TextResult{
		Classification: model.ClassificationPersonal,
		CategoryName:   "Groceries",
		Confidence:     0.8,
	}}
	f := newFixture(t, text)

	txn := testutil.NewTransaction(9999).WithDetails("Somewhere").Build()
	got, err := f.engine.Categorize(context.Background(), txn, false)
	require.NoError(t, err)

	assert.Equal(t, model.SourceLLM, got.Source)
	assert.Equal(t, "Categorized by text classifier", got.Explanation)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, f.db.CategoryID(testutil.CategoryGroceries), *got.CategoryID)
	require.Len(t, text.accountTypes, 1)
	assert.Equal(t, model.AccountPersonal, text.accountTypes[0])
}

func TestEngine_Categorize_BusinessTextResultWithoutCategory(t *testing.T) {
	ctx := context.Background()
	text := &fakeText{available: true, result: &llm.TextResult{
		Classification: model.ClassificationBusiness,
		Confidence:     0.85,
		Reasoning:      "Supplier invoice",
	}}
	f := newFixture(t, text)
	txn := testutil.NewTransaction(f.business).WithDetails("Acme Widgets Ltd").Build()

	got, err := f.engine.Categorize(ctx, txn, false)
	require.NoError(t, err)
	assert.Equal(t, model.SourceLLM, got.Source)
	assert.Equal(t, model.ClassificationBusiness, got.Classification)
	assert.Equal(t, model.NotApplicableBusiness, got.CategoryName)
	assert.Nil(t, got.CategoryID, "categorizing does not create the sentinel")
	_, err = f.db.Storage.GetCategoryByName(ctx, model.NotApplicableBusiness)
	require.ErrorIs(t, err, common.ErrNotFound)

	sentinel, err := f.db.Storage.GetOrCreateCategory(ctx, model.NotApplicableBusiness)
	require.NoError(t, err)

	got, err = f.engine.Categorize(ctx, txn, false)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, sentinel.ID, *got.CategoryID)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
}

func TestEngine_Categorize_DoesNotWrite(t *testing.T) {
	f := newFixture(t, nil)
	saved := f.db.Save(testutil.NewTransaction(f.personal).WithDetails("Countdown Ponsonby").Build())

	got, err := f.engine.Categorize(context.Background(), saved[0], false)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)

	stored := f.db.Transaction(saved[0].ID)
	assert.Nil(t, stored.CategoryID)
	assert.Equal(t, model.SourcePending, stored.Source)
	assert.Equal(t, model.ClassificationUnclassified, stored.Classification)
}

func TestEngine_CategorizeBatch(t *testing.T) {
	text := &fakeText{available: true, err: errors.New("offline")}
	f := newFixture(t, text)
	groceries := f.db.CategoryID(testutil.CategoryGroceries)
	rule := f.addRule(t, "Countdown", model.MatchContains, groceries, 0.5)

	txns := []model.Transaction{
		testutil.NewTransaction(f.personal).WithDetails("Countdown Ponsonby").Build(),
		testutil.NewTransaction(f.personal).WithDetails("Uber trip").Build(),
	}

	t.Run("rules only accepts any match", func(t *testing.T) {
		got, err := f.engine.CategorizeBatch(context.Background(), txns, true)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, model.SourceRule, got[0].Source)
		assert.InDelta(t, 0.5, got[0].Confidence, 1e-9)
		require.NotNil(t, got[0].RuleID)
		assert.Equal(t, rule.ID, *got[0].RuleID)

		assert.Equal(t, model.SourceNone, got[1].Source)
		assert.Equal(t, model.ClassificationUnclassified, got[1].Classification)
		assert.Nil(t, got[1].CategoryID)
		assert.Zero(t, got[1].Confidence)
		assert.Zero(t, text.calls())
	})

	t.Run("full tiers apply the threshold", func(t *testing.T) {
		got, err := f.engine.CategorizeBatch(context.Background(), txns, false)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, model.SourceDefault, got[0].Source)
		assert.Equal(t, model.SourceDefault, got[1].Source)
		assert.Equal(t, "Transport", got[1].CategoryName)
		assert.Equal(t, 2, text.calls())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.engine.CategorizeBatch(ctx, txns, true)
		require.Error(t, err)
	})
}

func TestEngine_RuleStatsAndStats(t *testing.T) {
	f := newFixture(t, nil)
	groceries := f.db.CategoryID(testutil.CategoryGroceries)
	f.addRule(t, "Countdown", model.MatchContains, groceries, 0.9)
	f.addRule(t, "Uber", model.MatchContains, groceries, 0.6)

	f.db.Save(
		testutil.NewTransaction(f.personal).WithDetails("Countdown").Confirmed(model.ClassificationPersonal, groceries).Build(),
		testutil.NewTransaction(f.personal).WithDetails("Uber").Build(),
	)

	ruleStats, err := f.engine.RuleStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ruleStats.TotalRules)
	assert.Equal(t, 1, ruleStats.HighConfidence)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.UserConfirmed)
	assert.Equal(t, 1, stats.NeedsAttention)

	rules, err := f.engine.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Countdown", rules[0].Pattern)

	categories, err := f.engine.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, len(testutil.BasicCategories()))

	unreviewed, err := f.engine.Unreviewed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, unreviewed, 1)
	assert.Equal(t, "Uber", unreviewed[0].Details)
}

func TestEngine_PredictWithoutModel(t *testing.T) {
	f := newFixture(t, nil)
	saved := f.db.Save(testutil.NewTransaction(f.personal).WithDetails("Countdown").Build())

	_, err := f.engine.Predict(context.Background(), saved[0].ID)
	require.ErrorIs(t, err, common.ErrNoModel)

	_, err = f.engine.AutoCategorize(context.Background(), 0)
	require.ErrorIs(t, err, common.ErrNoModel)
}

func TestEngine_TrainPredictAutoCategorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedTraining(t, f, 15)

	result, err := f.engine.Train(ctx, 0)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 30, result.Samples)

	pending := f.db.Save(testutil.NewTransaction(f.personal).WithDetails("COUNTDOWN PONSONBY").Build())

	prediction, err := f.engine.Predict(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.db.CategoryID(testutil.CategoryGroceries), prediction.CategoryID)
	assert.Equal(t, "Groceries", prediction.CategoryName)

	auto, err := f.engine.AutoCategorize(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, auto.Processed)
	assert.Equal(t, 1, auto.Categorized)

	stored := f.db.Transaction(pending[0].ID)
	assert.Equal(t, model.SourceML, stored.Source)
}

func TestEngine_TrainInsufficientData(t *testing.T) {
	f := newFixture(t, nil)
	seedTraining(t, f, 5)

	result, err := f.engine.Train(context.Background(), 20)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 10, result.Samples)
}

func TestEngine_TrainBelowMinimumKeepsModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedTraining(t, f, 15)

	first, err := f.engine.Train(ctx, 0)
	require.NoError(t, err)
	require.True(t, first.Success, first.Error)

	before, err := f.db.Storage.LoadBlob(ctx, ml.DefaultBlobName)
	require.NoError(t, err)
	info, ok := f.engine.ModelInfo()
	require.True(t, ok)

	result, err := f.engine.Train(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, result.Success)

	after, err := f.db.Storage.LoadBlob(ctx, ml.DefaultBlobName)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	again, ok := f.engine.ModelInfo()
	require.True(t, ok)
	assert.Equal(t, info, again)
}

// seedTraining saves n confirmed rows for each of two clearly separable
// merchants.
func seedTraining(t *testing.T, f *fixture, n int) {
	t.Helper()
	groceries := f.db.CategoryID(testutil.CategoryGroceries)
	transport := f.db.CategoryID(testutil.CategoryTransport)

	var txns []model.Transaction
	for i := 0; i < n; i++ {
		date := testutil.DefaultDate.AddDate(0, 0, i%3)
		txns = append(txns,
			testutil.NewTransaction(f.personal).WithDetails("COUNTDOWN PONSONBY").On(date).
				Confirmed(model.ClassificationPersonal, groceries).Build(),
			testutil.NewTransaction(f.personal).WithDetails("Z ENERGY NEWMARKET").On(date).
				Confirmed(model.ClassificationPersonal, transport).Build(),
		)
	}
	f.db.Save(txns...)
}
