package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/shopspring/decimal"
)

const ruleColumns = `id, merchant_pattern, match_type, account_type, min_amount, max_amount,
	day_of_week, classification, category_id, confidence, times_applied, times_overridden,
	created_at, updated_at`

func scanRule(rs rowScanner) (*model.MerchantRule, error) {
	var (
		rule                      model.MerchantRule
		matchType, classification string
		accountType, dayOfWeek    sql.NullString
		minAmount, maxAmount      decimal.NullDecimal
		categoryID                sql.NullInt64
	)

	err := rs.Scan(
		&rule.ID, &rule.Pattern, &matchType, &accountType, &minAmount, &maxAmount,
		&dayOfWeek, &classification, &categoryID, &rule.Confidence, &rule.TimesApplied, &rule.TimesOverridden,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MatchType = model.ParseMatchType(matchType)
	rule.Classification = model.Classification(classification)
	rule.DayOfWeek = model.DayClass(dayOfWeek.String)
	rule.CategoryID = int64Ptr(categoryID)
	if accountType.Valid {
		at := model.AccountType(accountType.String)
		rule.AccountType = &at
	}
	if minAmount.Valid {
		v := minAmount.Decimal
		rule.MinAmount = &v
	}
	if maxAmount.Valid {
		v := maxAmount.Decimal
		rule.MaxAmount = &v
	}

	return &rule, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func accountTypeValue(at *model.AccountType) sql.NullString {
	if at == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*at), Valid: true}
}

// GetRules returns all merchant rules ordered by confidence descending.
// Ties are broken by id so matching is deterministic.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.MerchantRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM merchant_rules ORDER BY confidence DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.MerchantRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merchant rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merchant rules: %w", err)
	}
	return rules, nil
}

// GetRuleByKey returns the rule stored for a pattern and match type.
func (s *SQLiteStorage) GetRuleByKey(ctx context.Context, pattern string, matchType model.MatchType) (*model.MerchantRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	rule, err := getRuleByKeyTx(ctx, s.db, pattern, matchType)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("rule %q (%s): %w", pattern, matchType, common.ErrNotFound)
	}
	return rule, nil
}

// getRuleByKeyTx returns nil, nil when no rule exists for the key.
func getRuleByKeyTx(ctx context.Context, q queryable, pattern string, matchType model.MatchType) (*model.MerchantRule, error) {
	rule, err := scanRule(q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM merchant_rules WHERE merchant_pattern = ? AND match_type = ?`,
		pattern, string(matchType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get merchant rule: %w", err)
	}
	return rule, nil
}

// UpsertRule reads the rule for a key, lets mutate decide its new state, and
// writes the result, all inside one immediate transaction. Concurrent
// feedback on the same merchant is serialized by SQLite's write lock.
// A nil result from mutate leaves the store untouched.
func (s *SQLiteStorage) UpsertRule(ctx context.Context, pattern string, matchType model.MatchType, mutate service.RuleMutator) (*model.MerchantRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	if mutate == nil {
		return nil, fmt.Errorf("%w: mutate", ErrNilParameter)
	}

	var result *model.MerchantRule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getRuleByKeyTx(ctx, tx, pattern, matchType)
		if err != nil {
			return err
		}

		updated, err := mutate(existing)
		if err != nil {
			return err
		}
		if updated == nil {
			result = existing
			return nil
		}

		updated.Pattern = pattern
		updated.MatchType = matchType
		if err := validateRule(updated); err != nil {
			return err
		}

		now := time.Now()
		updated.UpdatedAt = now

		if existing == nil {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO merchant_rules (
					merchant_pattern, match_type, account_type, min_amount, max_amount,
					day_of_week, classification, category_id, confidence,
					times_applied, times_overridden, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				updated.Pattern, string(updated.MatchType), accountTypeValue(updated.AccountType),
				nullDecimal(updated.MinAmount), nullDecimal(updated.MaxAmount),
				nullString(string(updated.DayOfWeek)), string(updated.Classification), nullInt64(updated.CategoryID),
				updated.Confidence, updated.TimesApplied, updated.TimesOverridden, now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to create merchant rule: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get merchant rule ID: %w", err)
			}
			updated.ID = id
			updated.CreatedAt = now
		} else {
			_, err := tx.ExecContext(ctx, `
				UPDATE merchant_rules
				SET account_type = ?, min_amount = ?, max_amount = ?, day_of_week = ?,
					classification = ?, category_id = ?, confidence = ?,
					times_applied = ?, times_overridden = ?, updated_at = ?
				WHERE id = ?`,
				accountTypeValue(updated.AccountType), nullDecimal(updated.MinAmount), nullDecimal(updated.MaxAmount),
				nullString(string(updated.DayOfWeek)), string(updated.Classification), nullInt64(updated.CategoryID),
				updated.Confidence, updated.TimesApplied, updated.TimesOverridden, now, existing.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update merchant rule: %w", err)
			}
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteRule removes a merchant rule. Rules are only ever removed by the user.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM merchant_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete merchant rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}
