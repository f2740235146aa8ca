package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createTestAccount(t *testing.T, store *SQLiteStorage, accountType model.AccountType) *model.Account {
	t.Helper()
	account := &model.Account{Name: "Account " + string(accountType), Type: accountType}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func createTestCategory(t *testing.T, store *SQLiteStorage, name string) *model.Category {
	t.Helper()
	cat := &model.Category{Name: name}
	require.NoError(t, store.CreateCategory(context.Background(), cat))
	return cat
}

func newTestTransaction(accountID int64, details, code string, amount float64) model.Transaction {
	return model.Transaction{
		AccountID: accountID,
		Date:      time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
		Type:      "eftpos",
		Details:   details,
		Code:      code,
		Amount:    decimal.NewFromFloat(amount),
	}
}

func saveTestTransactions(t *testing.T, store *SQLiteStorage, txns ...model.Transaction) []model.Transaction {
	t.Helper()
	n, err := store.SaveTransactions(context.Background(), txns)
	require.NoError(t, err)
	require.Equal(t, len(txns), n)
	return txns
}
