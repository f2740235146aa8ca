package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

const categoryColumns = `id, name, is_income, nl_description, nl_keywords, created_at`

func scanCategory(rs rowScanner) (*model.Category, error) {
	var (
		cat                   model.Category
		description, keywords sql.NullString
	)
	if err := rs.Scan(&cat.ID, &cat.Name, &cat.IsIncome, &description, &keywords, &cat.CreatedAt); err != nil {
		return nil, err
	}
	cat.Description = description.String
	cat.Keywords = keywords.String
	return &cat, nil
}

func (s *SQLiteStorage) queryCategories(ctx context.Context, where string) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories `+where+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategories returns all categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryCategories(ctx, "")
}

// GetCategoriesWithDescriptions returns categories the text classifier may choose from.
func (s *SQLiteStorage) GetCategoriesWithDescriptions(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryCategories(ctx, `WHERE TRIM(COALESCE(nl_description, '')) != '' OR TRIM(COALESCE(nl_keywords, '')) != ''`)
}

// GetCategoryByID returns a category by id.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	cat, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

// GetCategoryByName returns a category by its exact name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	cat, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

// CreateCategory inserts a new category and sets its ID.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	category.Name = strings.TrimSpace(category.Name)
	if err := validateString(category.Name, "name"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, is_income, nl_description, nl_keywords)
		VALUES (?, ?, ?, ?)`,
		category.Name, category.IsIncome, nullString(category.Description), nullString(category.Keywords))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("category %q: %w", category.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}
	category.ID = id

	slog.Info("created category", "name", category.Name, "id", id)
	return nil
}

// GetOrCreateCategory returns the named category, creating it if needed.
func (s *SQLiteStorage) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var cat *model.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		var err error
		cat, err = scanCategory(tx.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name))
		if err != nil {
			return fmt.Errorf("failed to get category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}
