package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []int64
		wantErr bool
	}{
		{name: "single", in: []string{"7"}, want: []int64{7}},
		{name: "comma separated", in: []string{"1,2, 3"}, want: []int64{1, 2, 3}},
		{name: "mixed", in: []string{"1,2", "9"}, want: []int64{1, 2, 9}},
		{name: "trailing comma", in: []string{"4,"}, want: []int64{4}},
		{name: "empty", in: []string{""}, wantErr: true},
		{name: "not a number", in: []string{"1,x"}, wantErr: true},
		{name: "zero", in: []string{"0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCategory(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
	groceries := db.CategoryID(testutil.CategoryGroceries)

	id, err := resolveCategory(ctx, db.Storage, "")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = resolveCategory(ctx, db.Storage, "groceries")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, groceries, *id)

	id, err = resolveCategory(ctx, db.Storage, strconv.FormatInt(groceries, 10))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, groceries, *id)

	_, err = resolveCategory(ctx, db.Storage, "Yachts")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = resolveCategory(ctx, db.Storage, "9999")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolveAccount(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	id := db.Account("Everyday", model.AccountPersonal)

	account, err := resolveAccount(ctx, db.Storage, "EVERYDAY")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)

	account, err = resolveAccount(ctx, db.Storage, strconv.FormatInt(id, 10))
	require.NoError(t, err)
	assert.Equal(t, "Everyday", account.Name)

	_, err = resolveAccount(ctx, db.Storage, "Savings")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = resolveAccount(ctx, db.Storage, " ")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestReviewPlain(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
	account := db.Account("Everyday", model.AccountPersonal)
	saved := db.Save(testutil.NewTransaction(account).WithDetails("COUNTDOWN PONSONBY").Build())
	eng := engine.New(db.Storage, nil, nil, engine.DefaultConfig())

	var out bytes.Buffer
	prompter := cli.NewPrompter(strings.NewReader("p\ngroceries\n"), &out)
	err := reviewPlain(ctx, eng, prompter, &out, reviewOptions{learn: true})
	require.NoError(t, err)

	txn := db.Transaction(saved[0].ID)
	assert.True(t, txn.IsUserConfirmed)
	assert.Equal(t, model.ClassificationPersonal, txn.Classification)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, db.CategoryID(testutil.CategoryGroceries), *txn.CategoryID)
	assert.Equal(t, 1, prompter.Stats().Modified)

	rules, err := eng.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestReviewPlain_QuitLeavesQueue(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
	account := db.Account("Everyday", model.AccountPersonal)
	saved := db.Save(testutil.NewTransaction(account).WithDetails("Z ENERGY").Build())
	eng := engine.New(db.Storage, nil, nil, engine.DefaultConfig())

	var out bytes.Buffer
	prompter := cli.NewPrompter(strings.NewReader("q\n"), &out)
	require.NoError(t, reviewPlain(ctx, eng, prompter, &out, reviewOptions{learn: true}))

	assert.False(t, db.Transaction(saved[0].ID).IsUserConfirmed)
}

func TestReviewPlain_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	eng := engine.New(db.Storage, nil, nil, engine.DefaultConfig())

	var out bytes.Buffer
	prompter := cli.NewPrompter(strings.NewReader(""), &out)
	require.NoError(t, reviewPlain(context.Background(), eng, prompter, &out, reviewOptions{}))
	assert.Contains(t, out.String(), "Nothing to review")
}

func TestRunMaintenance(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
	account := db.Account("Everyday", model.AccountPersonal)
	groceries := db.CategoryID(testutil.CategoryGroceries)
	db.Save(
		testutil.NewTransaction(account).WithDetails("COUNTDOWN PONSONBY").Confirmed(model.ClassificationPersonal, groceries).Build(),
		testutil.NewTransaction(account).WithDetails("COUNTDOWN HERNE BAY").Build(),
	)
	eng := engine.New(db.Storage, nil, nil, engine.DefaultConfig())
	_, err := eng.ApplyFeedback(ctx, engine.FeedbackRequest{
		TransactionID:  1,
		Classification: model.ClassificationPersonal,
		CategoryID:     &groceries,
		Learn:          true,
	})
	require.NoError(t, err)

	require.NoError(t, runMaintenance(ctx, eng))

	_, ok := eng.ModelInfo()
	assert.False(t, ok, "too few samples to train")
}

func TestNewScheduler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	eng := engine.New(db.Storage, nil, nil, engine.DefaultConfig())

	c, err := newScheduler(context.Background(), eng, config.ServeConfig{RetrainSchedule: "0 3 * * *", TimeZone: "UTC"})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = newScheduler(context.Background(), eng, config.ServeConfig{RetrainSchedule: "every tuesday", TimeZone: "UTC"})
	require.Error(t, err)

	_, err = newScheduler(context.Background(), eng, config.ServeConfig{RetrainSchedule: "0 3 * * *", TimeZone: "Nowhere/Land"})
	require.Error(t, err)
}
