package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Categories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	groceries := &model.Category{Name: "Groceries", Description: "Supermarket food shopping"}
	require.NoError(t, store.CreateCategory(ctx, groceries))
	salary := &model.Category{Name: "Salary", IsIncome: true}
	require.NoError(t, store.CreateCategory(ctx, salary))

	t.Run("duplicate names are rejected", func(t *testing.T) {
		err := store.CreateCategory(ctx, &model.Category{Name: "Groceries"})
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("lookup by id and name", func(t *testing.T) {
		byID, err := store.GetCategoryByID(ctx, salary.ID)
		require.NoError(t, err)
		assert.True(t, byID.IsIncome)

		byName, err := store.GetCategoryByName(ctx, "Groceries")
		require.NoError(t, err)
		assert.Equal(t, groceries.ID, byName.ID)

		_, err = store.GetCategoryByName(ctx, "Nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
		_, err = store.GetCategoryByID(ctx, 999)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("only described categories are offered to the text classifier", func(t *testing.T) {
		described, err := store.GetCategoriesWithDescriptions(ctx)
		require.NoError(t, err)
		require.Len(t, described, 1)
		assert.Equal(t, "Groceries", described[0].Name)
	})

	t.Run("get or create is idempotent", func(t *testing.T) {
		first, err := store.GetOrCreateCategory(ctx, model.NotApplicableBusiness)
		require.NoError(t, err)
		second, err := store.GetOrCreateCategory(ctx, model.NotApplicableBusiness)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		all, err := store.GetCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestSQLiteStorage_Accounts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	account := &model.Account{Name: "Cheque", Type: model.AccountBusiness}
	require.NoError(t, store.CreateAccount(ctx, account))

	got, err := store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountBusiness, got.Type)

	err = store.CreateAccount(ctx, &model.Account{Name: "Other", Type: "crypto"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.GetAccountByID(ctx, 42)
	assert.ErrorIs(t, err, common.ErrNotFound)

	accounts, err := store.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
