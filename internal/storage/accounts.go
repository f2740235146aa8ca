package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// CreateAccount inserts a new account and sets its ID.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "name"); err != nil {
		return err
	}
	if !account.Type.Valid() {
		return common.ValidationError("account_type", "unknown value %q", account.Type)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, account_type) VALUES (?, ?)`,
		account.Name, string(account.Type))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("account %q: %w", account.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account ID: %w", err)
	}
	account.ID = id
	return nil
}

// GetAccountByID returns an account by id.
func (s *SQLiteStorage) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		account     model.Account
		accountType string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, account_type FROM accounts WHERE id = ?`, id,
	).Scan(&account.ID, &account.Name, &accountType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.Type = model.AccountType(accountType)
	return &account, nil
}

// GetAccounts returns all accounts ordered by name.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, account_type FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var (
			account     model.Account
			accountType string
		)
		if err := rows.Scan(&account.ID, &account.Name, &accountType); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Type = model.AccountType(accountType)
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}
