package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

var (
	// ErrNotSQLite is returned when an imported file is not a SQLite database.
	ErrNotSQLite = errors.New("file is not a sqlite database")
	// ErrIncompleteSchema is returned when an imported database lacks one of the schema tables.
	ErrIncompleteSchema = errors.New("database is missing required tables")
)

var sqliteHeader = []byte("SQLite format 3\x00")

// ExportSQLite writes a consistent copy of the live SQLite database to w.
func ExportSQLite(ctx context.Context, db *gorm.DB, w io.Writer) (int64, error) {
	dir, err := os.MkdirTemp("", "task-monitor-export-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "export.sqlite")
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return 0, fmt.Errorf("failed to snapshot database: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return n, nil
}

// StageImage copies r into a temporary file next to target and validates it.
// The caller renames the returned path over target or removes it.
func StageImage(r io.Reader, target string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(target), ".import-*.sqlite")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	path := f.Name()

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}

	if err := ValidateImage(path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// ValidateImage checks that path is a SQLite file holding the full schema.
func ValidateImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	header := make([]byte, len(sqliteHeader))
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil || !bytes.Equal(header, sqliteHeader) {
		return ErrNotSQLite
	}

	db, err := OpenSQLite(path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotSQLite, err)
	}
	defer Close(db)

	if !HasSchema(db) {
		return ErrIncompleteSchema
	}
	return nil
}
