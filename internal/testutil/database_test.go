package testutil_test

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDB_SeedsCategories(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)

	cats, err := db.Storage.GetCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(testutil.BasicCategories()))

	groceries := db.Categories.MustFind(t, testutil.CategoryGroceries)
	assert.True(t, groceries.HasNLDescription())
	assert.Equal(t, groceries.ID, db.CategoryID(testutil.CategoryGroceries))
	assert.True(t, db.Categories.MustFind(t, testutil.CategorySalary).IsIncome)
	assert.Nil(t, db.Categories.Find(testutil.CategoryTest1))
}

func TestSetupTestDB_TestCategoriesHaveNoDescription(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.CategoryTest1)
	test1 := db.Categories.MustFind(t, testutil.CategoryTest1)
	assert.False(t, test1.HasNLDescription())
}

func TestTestDB_Save(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.CategoryGroceries)
	accountID := db.Account("Everyday", model.AccountPersonal)
	groceries := db.CategoryID(testutil.CategoryGroceries)

	saved := db.Save(
		testutil.NewTransaction(accountID).WithDetails("Countdown").Build(),
		testutil.NewTransaction(accountID).WithDetails("New World").
			Confirmed(model.ClassificationPersonal, groceries).Build(),
	)
	require.Len(t, saved, 2)

	pending := db.Transaction(saved[0].ID)
	assert.Equal(t, "Countdown", pending.Details)
	assert.Equal(t, model.SourcePending, pending.Source)
	assert.Nil(t, pending.CategoryID)

	confirmed := db.Transaction(saved[1].ID)
	assert.True(t, confirmed.IsUserConfirmed)
	require.NotNil(t, confirmed.CategoryID)
	assert.Equal(t, groceries, *confirmed.CategoryID)
}

func TestTransactionBuilder_BuildCopies(t *testing.T) {
	builder := testutil.NewTransaction(1).Categorized(7, model.SourceRule)
	first := builder.Build()
	*first.CategoryID = 99

	second := builder.Build()
	assert.Equal(t, int64(7), *second.CategoryID)
	assert.Equal(t, "-25", second.Amount.String())
}
