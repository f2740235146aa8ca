package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

const transactionColumns = `id, account_id, transaction_date, transaction_type, details,
	particulars, code, reference, amount, category_id, classification,
	is_reviewed, is_user_confirmed, categorization_source, import_batch_id, external_id`

func scanTransaction(rs rowScanner) (*model.Transaction, error) {
	var (
		txn                                  model.Transaction
		txnType, details, particulars, code  sql.NullString
		reference, importBatchID, externalID sql.NullString
		categoryID                           sql.NullInt64
		classification, source               string
	)

	err := rs.Scan(
		&txn.ID, &txn.AccountID, &txn.Date, &txnType, &details,
		&particulars, &code, &reference, &txn.Amount, &categoryID, &classification,
		&txn.IsReviewed, &txn.IsUserConfirmed, &source, &importBatchID, &externalID,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = txnType.String
	txn.Details = details.String
	txn.Particulars = particulars.String
	txn.Code = code.String
	txn.Reference = reference.String
	txn.ImportBatchID = importBatchID.String
	txn.ExternalID = externalID.String
	txn.CategoryID = int64Ptr(categoryID)
	txn.Classification = model.Classification(classification)
	txn.Source = model.CategorizationSource(source)

	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// inClause builds "(?, ?, ...)" and its arguments for an id set.
func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(placeholders, ", ") + ")", args
}

// SaveTransactions inserts transactions, skipping rows whose external id was
// already imported for the same account. It returns the number inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				account_id, transaction_date, transaction_type, details, particulars,
				code, reference, amount, category_id, classification,
				is_reviewed, is_user_confirmed, categorization_source, import_batch_id, external_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range transactions {
			txn := &transactions[i]
			if txn.Classification == "" {
				txn.Classification = model.ClassificationUnclassified
			}
			if txn.Source == "" {
				txn.Source = model.SourcePending
			}

			result, err := stmt.ExecContext(ctx,
				txn.AccountID, txn.Date, nullString(txn.Type), nullString(txn.Details), nullString(txn.Particulars),
				nullString(txn.Code), nullString(txn.Reference), txn.Amount, nullInt64(txn.CategoryID), string(txn.Classification),
				txn.IsReviewed, txn.IsUserConfirmed, string(txn.Source), nullString(txn.ImportBatchID), nullString(txn.ExternalID),
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction: %w", err)
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				continue
			}

			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get transaction ID: %w", err)
			}
			txn.ID = id
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getTransactionByIDTx(ctx, s.db, id)
}

func getTransactionByIDTx(ctx context.Context, q queryable, id int64) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionsByIDs returns the transactions that exist among ids.
// Missing ids are silently absent from the result.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, ids []int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	clause, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id IN `+clause+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

// GetTransactions retrieves transactions matching the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		conditions []string
		args       []any
	)

	if filter.StartDate != nil {
		conditions = append(conditions, "transaction_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "transaction_date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}

	switch filter.State {
	case service.StatePending:
		conditions = append(conditions, "is_user_confirmed = 0", "category_id IS NULL")
	case service.StateUnconfirmed:
		conditions = append(conditions, "is_user_confirmed = 0")
	case service.StateTrainable:
		conditions = append(conditions, "is_user_confirmed = 1", "category_id IS NOT NULL")
	case service.StateUnreviewed:
		conditions = append(conditions, "is_reviewed = 0")
	case service.StateAny:
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY transaction_date DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

// escapeLike escapes LIKE wildcards so a merchant prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// FindSimilarTransactions finds transactions whose merchant field starts with
// the query prefix. SQLite's LIKE is case-insensitive for ASCII.
func (s *SQLiteStorage) FindSimilarTransactions(ctx context.Context, query service.SimilarityQuery) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(query.Prefix, "prefix"); err != nil {
		return nil, err
	}

	var column string
	switch query.Field {
	case service.SimilarByCode:
		column = "code"
	case service.SimilarByDetails:
		column = "details"
	default:
		return nil, common.ValidationError("field", "unknown similarity field %q", query.Field)
	}

	sqlQuery := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE ` + column + ` LIKE ? ESCAPE '\' AND id != ?`
	if !query.IncludeConfirmed {
		sqlQuery += ` AND is_user_confirmed = 0`
	}
	sqlQuery += ` ORDER BY transaction_date DESC, id DESC`

	args := []any{escapeLike(query.Prefix) + "%", query.ExcludeID}
	if query.Limit > 0 {
		sqlQuery += ` LIMIT ?`
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ConfirmTransactions records a user decision and locks the rows.
func (s *SQLiteStorage) ConfirmTransactions(ctx context.Context, ids []int64, classification model.Classification, categoryID *int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids", ErrEmptySlice)
	}
	if err := validateClassification(classification); err != nil {
		return 0, err
	}

	clause, idArgs := inClause(ids)
	args := append([]any{nullInt64(categoryID), string(classification), string(model.SourceUser)}, idArgs...)

	var updated int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category_id = ?, classification = ?, categorization_source = ?,
				is_reviewed = 1, is_user_confirmed = 1, updated_at = CURRENT_TIMESTAMP
			WHERE id IN `+clause, args...)
		if err != nil {
			return fmt.Errorf("failed to confirm transactions: %w", err)
		}
		updated, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return updated, nil
}

func validateAutomatedSource(source model.CategorizationSource) error {
	if !source.Valid() || source == model.SourceUser || source == model.SourcePending {
		return common.ValidationError("source", "%q cannot be used for automated updates", source)
	}
	return nil
}

// ApplyAutomatedUpdate writes a category chosen by an automated tier. The
// confirmation lock is checked in the UPDATE itself so a row confirmed after
// it was read is never overwritten.
func (s *SQLiteStorage) ApplyAutomatedUpdate(ctx context.Context, update service.AutomatedUpdate) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateAutomatedSource(update.Source); err != nil {
		return false, err
	}

	query := `UPDATE transactions SET category_id = ?, categorization_source = ?, is_reviewed = 0, updated_at = CURRENT_TIMESTAMP`
	args := []any{nullInt64(update.CategoryID), string(update.Source)}
	if update.Classification != nil {
		if err := validateClassification(*update.Classification); err != nil {
			return false, err
		}
		query += `, classification = ?`
		args = append(args, string(*update.Classification))
	}
	query += ` WHERE id = ? AND is_user_confirmed = 0`
	args = append(args, update.ID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply automated update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// BulkApplyAutomated applies one automated decision to many rows in a single
// transaction, skipping confirmed rows. It returns the number updated.
func (s *SQLiteStorage) BulkApplyAutomated(ctx context.Context, ids []int64, classification model.Classification, categoryID *int64, source model.CategorizationSource) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := validateAutomatedSource(source); err != nil {
		return 0, err
	}
	if err := validateClassification(classification); err != nil {
		return 0, err
	}

	clause, idArgs := inClause(ids)
	args := append([]any{nullInt64(categoryID), string(classification), string(source)}, idArgs...)

	var updated int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category_id = ?, classification = ?, categorization_source = ?,
				is_reviewed = 0, updated_at = CURRENT_TIMESTAMP
			WHERE id IN `+clause+` AND is_user_confirmed = 0`, args...)
		if err != nil {
			return fmt.Errorf("failed to bulk update transactions: %w", err)
		}
		updated, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return updated, nil
}

// ResetTransaction clears a transaction's categorization and unlocks it.
func (s *SQLiteStorage) ResetTransaction(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = NULL, classification = ?, categorization_source = ?,
			is_reviewed = 0, is_user_confirmed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(model.ClassificationUnclassified), string(model.SourcePending), id)
	if err != nil {
		return fmt.Errorf("failed to reset transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// GetTransactionStats counts transactions by categorization state.
func (s *SQLiteStorage) GetTransactionStats(ctx context.Context) (*model.Stats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var stats model.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_user_confirmed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN category_id IS NOT NULL AND is_user_confirmed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN category_id IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN classification = 'unclassified' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN classification = 'personal' AND category_id IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_reviewed = 0 THEN 1 ELSE 0 END), 0)
		FROM transactions`,
	).Scan(
		&stats.Total, &stats.UserConfirmed, &stats.AutoCategorized, &stats.Uncategorized,
		&stats.Unclassified, &stats.PersonalUncategorized, &stats.NeedsAttention,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction stats: %w", err)
	}

	return &stats, nil
}
