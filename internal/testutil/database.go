// Package testutil provides test fixtures backed by a migrated in-memory
// database.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
//	accountID := db.Account("Everyday", model.AccountPersonal)
//	txns := db.Save(testutil.NewTransaction(accountID).WithDetails("Countdown").Build())
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/storage"
)

// TestDB is a migrated in-memory store plus the categories seeded into it.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	Categories Categories
}

// SetupTestDB creates a new in-memory test database seeded with the named
// categories. Cleanup is registered on t.
func SetupTestDB(t *testing.T, names ...CategoryName) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cats := make(Categories, 0, len(names))
	for _, name := range names {
		category := &model.Category{
			Name:        name.String(),
			Description: descriptions[name],
			IsIncome:    name == CategorySalary,
		}
		if err := store.CreateCategory(ctx, category); err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
		cats = append(cats, *category)
	}

	return &TestDB{
		Storage:    store,
		Categories: cats,
		t:          t,
	}
}

// Account creates an account and returns its id.
func (db *TestDB) Account(name string, accountType model.AccountType) int64 {
	db.t.Helper()
	account := &model.Account{Name: name, Type: accountType}
	if err := db.Storage.CreateAccount(context.Background(), account); err != nil {
		db.t.Fatalf("failed to create account %q: %v", name, err)
	}
	return account.ID
}

// CategoryID returns the id of a seeded category or fails the test.
func (db *TestDB) CategoryID(name CategoryName) int64 {
	db.t.Helper()
	return db.Categories.MustFind(db.t, name).ID
}

// Save inserts txns and returns them with their ids set.
func (db *TestDB) Save(txns ...model.Transaction) []model.Transaction {
	db.t.Helper()
	inserted, err := db.Storage.SaveTransactions(context.Background(), txns)
	if err != nil {
		db.t.Fatalf("failed to save transactions: %v", err)
	}
	if inserted != len(txns) {
		db.t.Fatalf("saved %d of %d transactions", inserted, len(txns))
	}
	return txns
}

// Transaction reloads a transaction or fails the test.
func (db *TestDB) Transaction(id int64) model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransactionByID(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %d: %v", id, err)
	}
	return *txn
}
