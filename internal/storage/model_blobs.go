package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/service"
)

// LoadBlob returns the named model blob.
func (s *SQLiteStorage) LoadBlob(ctx context.Context, name string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM model_blobs WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("blob %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load blob: %w", err)
	}
	return data, nil
}

// SaveBlob replaces the named blob. Readers see either the old or the new
// bytes, never a partial write.
func (s *SQLiteStorage) SaveBlob(ctx context.Context, name string, data []byte) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: data", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO model_blobs (name, data, size, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(name) DO UPDATE SET
				data = excluded.data,
				size = excluded.size,
				updated_at = excluded.updated_at`,
			name, data, len(data))
		if err != nil {
			return fmt.Errorf("failed to save blob: %w", err)
		}
		return nil
	})
}

// FileBlobStore keeps model blobs as files in a directory.
type FileBlobStore struct {
	dir string
}

var _ service.ModelBlobStore = (*FileBlobStore)(nil)

// NewFileBlobStore creates the directory if needed.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := validateString(dir, "dir"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (f *FileBlobStore) path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name)+".json")
}

// LoadBlob reads the named blob.
func (f *FileBlobStore) LoadBlob(ctx context.Context, name string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// SaveBlob writes to a temporary file and renames it over the old blob.
func (f *FileBlobStore) SaveBlob(ctx context.Context, name string, data []byte) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: data", ErrEmptySlice)
	}

	target := f.path(name)
	tmp, err := os.CreateTemp(f.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace blob: %w", err)
	}
	return nil
}
