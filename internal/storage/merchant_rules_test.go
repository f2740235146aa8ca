package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRule(t *testing.T, store *SQLiteStorage, rule model.MerchantRule) *model.MerchantRule {
	t.Helper()
	saved, err := store.UpsertRule(context.Background(), rule.Pattern, rule.MatchType,
		func(_ *model.MerchantRule) (*model.MerchantRule, error) {
			r := rule
			return &r, nil
		})
	require.NoError(t, err)
	return saved
}

func TestSQLiteStorage_UpsertRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	cat := createTestCategory(t, store, "Groceries")

	business := model.AccountBusiness
	minAmount := decimal.NewFromInt(10)
	created := seedRule(t, store, model.MerchantRule{
		Pattern:        "Countdown",
		MatchType:      model.MatchContains,
		Classification: model.ClassificationPersonal,
		CategoryID:     &cat.ID,
		Confidence:     0.8,
		TimesApplied:   1,
		AccountType:    &business,
		MinAmount:      &minAmount,
		DayOfWeek:      model.DayWeekend,
	})
	require.NotZero(t, created.ID)

	got, err := store.GetRuleByKey(ctx, "Countdown", model.MatchContains)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, model.AccountBusiness, *got.AccountType)
	assert.True(t, got.MinAmount.Equal(minAmount))
	assert.Nil(t, got.MaxAmount)
	assert.Equal(t, model.DayWeekend, got.DayOfWeek)
	assert.Equal(t, cat.ID, *got.CategoryID)

	updated, err := store.UpsertRule(ctx, "Countdown", model.MatchContains, func(existing *model.MerchantRule) (*model.MerchantRule, error) {
		require.NotNil(t, existing)
		existing.TimesApplied++
		existing.Confidence = 0.85
		return existing, nil
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 2, updated.TimesApplied)

	got, err = store.GetRuleByKey(ctx, "Countdown", model.MatchContains)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)

	t.Run("nil mutation leaves store untouched", func(t *testing.T) {
		res, err := store.UpsertRule(ctx, "Unknown", model.MatchExact, func(_ *model.MerchantRule) (*model.MerchantRule, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, res)
		_, err = store.GetRuleByKey(ctx, "Unknown", model.MatchExact)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("mutation error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.UpsertRule(ctx, "Countdown", model.MatchContains, func(existing *model.MerchantRule) (*model.MerchantRule, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("invalid confidence is rejected", func(t *testing.T) {
		_, err := store.UpsertRule(ctx, "Bad", model.MatchExact, func(_ *model.MerchantRule) (*model.MerchantRule, error) {
			return &model.MerchantRule{Classification: model.ClassificationPersonal, Confidence: 1.5}, nil
		})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}

func TestSQLiteStorage_GetRules_Ordering(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	low := seedRule(t, store, model.MerchantRule{Pattern: "low", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 0.4})
	tieA := seedRule(t, store, model.MerchantRule{Pattern: "tie-a", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 0.9})
	tieB := seedRule(t, store, model.MerchantRule{Pattern: "tie-b", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 0.9})
	high := seedRule(t, store, model.MerchantRule{Pattern: "high", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 1.0})

	rules, err := store.GetRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 4)

	ids := []int64{rules[0].ID, rules[1].ID, rules[2].ID, rules[3].ID}
	assert.Equal(t, []int64{high.ID, tieA.ID, tieB.ID, low.ID}, ids)
}

func TestSQLiteStorage_UpsertRule_Concurrent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seedRule(t, store, model.MerchantRule{Pattern: "Cafe", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 0.5})

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpsertRule(ctx, "Cafe", model.MatchExact, func(existing *model.MerchantRule) (*model.MerchantRule, error) {
				existing.TimesApplied++
				return existing, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetRuleByKey(ctx, "Cafe", model.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, workers, got.TimesApplied)
}

func TestSQLiteStorage_DeleteRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := seedRule(t, store, model.MerchantRule{Pattern: "Gone", MatchType: model.MatchExact, Classification: model.ClassificationPersonal, Confidence: 0.6})
	require.NoError(t, store.DeleteRule(ctx, rule.ID))
	assert.ErrorIs(t, store.DeleteRule(ctx, rule.ID), common.ErrNotFound)
}
