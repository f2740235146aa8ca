package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					account_type TEXT NOT NULL CHECK (account_type IN ('personal', 'business', 'savings')),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					is_income BOOLEAN NOT NULL DEFAULT 0,
					nl_description TEXT,
					nl_keywords TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_id INTEGER NOT NULL REFERENCES accounts(id),
					transaction_date DATETIME NOT NULL,
					transaction_type TEXT,
					details TEXT,
					particulars TEXT,
					code TEXT,
					reference TEXT,
					amount REAL NOT NULL,
					category_id INTEGER REFERENCES categories(id),
					classification TEXT NOT NULL DEFAULT 'unclassified',
					is_reviewed BOOLEAN NOT NULL DEFAULT 0,
					is_user_confirmed BOOLEAN NOT NULL DEFAULT 0,
					categorization_source TEXT NOT NULL DEFAULT 'pending',
					import_batch_id TEXT,
					external_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (account_id, external_id)
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(transaction_date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
				`CREATE INDEX idx_transactions_confirmed ON transactions(is_user_confirmed)`,

				`CREATE TABLE IF NOT EXISTS merchant_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_pattern TEXT NOT NULL,
					match_type TEXT NOT NULL,
					account_type TEXT,
					min_amount REAL,
					max_amount REAL,
					day_of_week TEXT,
					classification TEXT NOT NULL,
					category_id INTEGER REFERENCES categories(id),
					confidence REAL NOT NULL DEFAULT 0.5,
					times_applied INTEGER NOT NULL DEFAULT 0,
					times_overridden INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (merchant_pattern, match_type)
				)`,
				`CREATE INDEX idx_merchant_rules_confidence ON merchant_rules(confidence DESC)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add merchant prefix indexes for similarity lookups",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX idx_transactions_code ON transactions(code COLLATE NOCASE)`,
				`CREATE INDEX idx_transactions_details ON transactions(details COLLATE NOCASE)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add model blob storage",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS model_blobs (
					name TEXT PRIMARY KEY,
					data BLOB NOT NULL,
					size INTEGER NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			})
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
