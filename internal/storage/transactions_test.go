package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_SaveTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)

	t.Run("assigns ids and defaults", func(t *testing.T) {
		txns := saveTestTransactions(t, store,
			newTestTransaction(account.ID, "COUNTDOWN PONSONBY", "", -42.10),
			newTestTransaction(account.ID, "SALARY ACME LTD", "", 3200),
		)
		require.NotZero(t, txns[0].ID)
		require.NotZero(t, txns[1].ID)

		got, err := store.GetTransactionByID(ctx, txns[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "COUNTDOWN PONSONBY", got.Details)
		assert.Equal(t, model.ClassificationUnclassified, got.Classification)
		assert.Equal(t, model.SourcePending, got.Source)
		assert.True(t, got.Amount.Equal(txns[0].Amount), "amount %s", got.Amount)
		assert.Nil(t, got.CategoryID)
	})

	t.Run("skips duplicate external ids", func(t *testing.T) {
		txn := newTestTransaction(account.ID, "SPOTIFY", "", -16.99)
		txn.ExternalID = "fit-1"
		n, err := store.SaveTransactions(ctx, []model.Transaction{txn})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.SaveTransactions(ctx, []model.Transaction{txn})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := store.SaveTransactions(ctx, nil)
		assert.ErrorIs(t, err, ErrNilParameter)

		bad := newTestTransaction(0, "NO ACCOUNT", "", -1)
		_, err = store.SaveTransactions(ctx, []model.Transaction{bad})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})
}

func TestSQLiteStorage_GetTransactionByID_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetTransactionByID(context.Background(), 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_ConfirmationLock(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)
	groceries := createTestCategory(t, store, "Groceries")
	dining := createTestCategory(t, store, "Food & Dining")

	txns := saveTestTransactions(t, store,
		newTestTransaction(account.ID, "COUNTDOWN PONSONBY", "", -42.10),
		newTestTransaction(account.ID, "COUNTDOWN MT EDEN", "", -12.00),
	)

	n, err := store.ConfirmTransactions(ctx, []int64{txns[0].ID}, model.ClassificationPersonal, &groceries.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	confirmed, err := store.GetTransactionByID(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.True(t, confirmed.IsUserConfirmed)
	assert.True(t, confirmed.IsReviewed)
	assert.Equal(t, model.SourceUser, confirmed.Source)

	business := model.ClassificationBusiness
	applied, err := store.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{
		ID:             txns[0].ID,
		CategoryID:     &dining.ID,
		Classification: &business,
		Source:         model.SourceML,
	})
	require.NoError(t, err)
	assert.False(t, applied, "confirmed rows must not be overwritten")

	updated, err := store.BulkApplyAutomated(ctx, []int64{txns[0].ID, txns[1].ID}, model.ClassificationBusiness, &dining.ID, model.SourceRule)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	locked, err := store.GetTransactionByID(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, groceries.ID, *locked.CategoryID)
	assert.Equal(t, model.ClassificationPersonal, locked.Classification)

	open, err := store.GetTransactionByID(ctx, txns[1].ID)
	require.NoError(t, err)
	assert.Equal(t, dining.ID, *open.CategoryID)
	assert.Equal(t, model.SourceRule, open.Source)
	assert.False(t, open.IsReviewed)
}

func TestSQLiteStorage_ApplyAutomatedUpdate_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.ApplyAutomatedUpdate(context.Background(), service.AutomatedUpdate{ID: 1, Source: model.SourceUser})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLiteStorage_GetTransactions_State(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)
	cat := createTestCategory(t, store, "Groceries")

	txns := saveTestTransactions(t, store,
		newTestTransaction(account.ID, "A", "", -1),
		newTestTransaction(account.ID, "B", "", -2),
		newTestTransaction(account.ID, "C", "", -3),
	)
	_, err := store.ConfirmTransactions(ctx, []int64{txns[0].ID}, model.ClassificationPersonal, &cat.ID)
	require.NoError(t, err)
	_, err = store.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{ID: txns[1].ID, CategoryID: &cat.ID, Source: model.SourceML})
	require.NoError(t, err)

	tests := []struct {
		name  string
		state service.TransactionState
		want  int
	}{
		{name: "any", state: service.StateAny, want: 3},
		{name: "pending", state: service.StatePending, want: 1},
		{name: "unconfirmed", state: service.StateUnconfirmed, want: 2},
		{name: "trainable", state: service.StateTrainable, want: 1},
		{name: "unreviewed", state: service.StateUnreviewed, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetTransactions(ctx, service.TransactionFilter{State: tt.state})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestSQLiteStorage_FindSimilarTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)
	cat := createTestCategory(t, store, "Groceries")

	txns := saveTestTransactions(t, store,
		newTestTransaction(account.ID, "Countdown Ponsonby", "CDN 1234", -10),
		newTestTransaction(account.ID, "Countdown Ponsonby", "cdn 1234", -11),
		newTestTransaction(account.ID, "Countdown Ponsonby", "CDN 1234 X", -12),
		newTestTransaction(account.ID, "Countdown Ponsonby", "CDN 9999", -13),
		newTestTransaction(account.ID, "100%_OFF", "", -5),
		newTestTransaction(account.ID, "100 OFF", "", -5),
	)
	_, err := store.ConfirmTransactions(ctx, []int64{txns[2].ID}, model.ClassificationPersonal, &cat.ID)
	require.NoError(t, err)

	t.Run("excludes source and confirmed rows", func(t *testing.T) {
		got, err := store.FindSimilarTransactions(ctx, service.SimilarityQuery{
			Field: service.SimilarByCode, Prefix: "CDN 1234", ExcludeID: txns[0].ID, Limit: 100,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, txns[1].ID, got[0].ID)
	})

	t.Run("includes confirmed rows on request", func(t *testing.T) {
		got, err := store.FindSimilarTransactions(ctx, service.SimilarityQuery{
			Field: service.SimilarByCode, Prefix: "CDN 1234", ExcludeID: txns[0].ID, Limit: 100, IncludeConfirmed: true,
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("treats wildcards literally", func(t *testing.T) {
		got, err := store.FindSimilarTransactions(ctx, service.SimilarityQuery{
			Field: service.SimilarByDetails, Prefix: "100%_", Limit: 100,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "100%_OFF", got[0].Details)
	})

	t.Run("respects limit", func(t *testing.T) {
		got, err := store.FindSimilarTransactions(ctx, service.SimilarityQuery{
			Field: service.SimilarByDetails, Prefix: "countdown", Limit: 2,
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("rejects unknown field", func(t *testing.T) {
		_, err := store.FindSimilarTransactions(ctx, service.SimilarityQuery{Field: "reference", Prefix: "x"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestSQLiteStorage_ResetTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)
	cat := createTestCategory(t, store, "Groceries")

	txns := saveTestTransactions(t, store, newTestTransaction(account.ID, "PAK N SAVE", "", -80))
	_, err := store.ConfirmTransactions(ctx, []int64{txns[0].ID}, model.ClassificationPersonal, &cat.ID)
	require.NoError(t, err)

	require.NoError(t, store.ResetTransaction(ctx, txns[0].ID))

	got, err := store.GetTransactionByID(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.False(t, got.IsUserConfirmed)
	assert.Equal(t, model.SourcePending, got.Source)
	assert.Equal(t, model.ClassificationUnclassified, got.Classification)

	assert.ErrorIs(t, store.ResetTransaction(ctx, 12345), common.ErrNotFound)
}

func TestSQLiteStorage_GetTransactionStats(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	account := createTestAccount(t, store, model.AccountPersonal)
	cat := createTestCategory(t, store, "Groceries")

	empty, err := store.GetTransactionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, *empty)

	txns := saveTestTransactions(t, store,
		newTestTransaction(account.ID, "A", "", -1),
		newTestTransaction(account.ID, "B", "", -2),
		newTestTransaction(account.ID, "C", "", -3),
	)
	_, err = store.ConfirmTransactions(ctx, []int64{txns[0].ID}, model.ClassificationPersonal, &cat.ID)
	require.NoError(t, err)
	_, err = store.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{ID: txns[1].ID, CategoryID: &cat.ID, Source: model.SourceML})
	require.NoError(t, err)
	_, err = store.ConfirmTransactions(ctx, []int64{txns[2].ID}, model.ClassificationPersonal, nil)
	require.NoError(t, err)

	stats, err := store.GetTransactionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{
		Total:                 3,
		UserConfirmed:         2,
		AutoCategorized:       1,
		Uncategorized:         1,
		Unclassified:          1,
		PersonalUncategorized: 1,
		NeedsAttention:        1,
	}, *stats)
}
