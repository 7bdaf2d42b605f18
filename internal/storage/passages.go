// Package storage provides the SQLite-backed passage store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// PassageStore persists retrievable passages in insertion order. Positions
// are assigned by the vector index; the store only records the snapshot it is
// handed, so row order always mirrors the vector file written alongside it.
type PassageStore struct {
	db      *sql.DB
	existed bool
}

// OpenPassageStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist. Whether the file existed beforehand is recorded for the index's
// paired-artifact check.
func OpenPassageStore(dbPath string) (*PassageStore, error) {
	existed := false
	if _, err := os.Stat(dbPath); err == nil {
		existed = true
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat passage database: %w", err)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PassageStore{db: db, existed: existed}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS passages (
		position INTEGER PRIMARY KEY,
		content TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS documents (
		hash TEXT PRIMARY KEY
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Existed reports whether the database file was present before this store opened it.
func (s *PassageStore) Existed() bool {
	return s.existed
}

// All returns every passage in position order.
func (s *PassageStore) All(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content FROM passages ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	passages := make([]string, 0)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		passages = append(passages, content)
	}
	return passages, rows.Err()
}

// Count returns the number of stored passages.
func (s *PassageStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n)
	return n, err
}

// ReplaceAll replaces the stored passages with the given snapshot in a single
// transaction, so readers after a crash see either the old or the new set.
func (s *PassageStore) ReplaceAll(ctx context.Context, passages []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM passages`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear passages: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (position, content) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, content := range passages {
		if _, err := stmt.ExecContext(ctx, i, content); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert passage %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// HasDocument reports whether a document with the given content hash has
// already been ingested.
func (s *PassageStore) HasDocument(ctx context.Context, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE hash = ?`, hash).Scan(&n)
	return n > 0, err
}

// RecordDocument marks a content hash as ingested. Recording the same hash
// twice is a no-op.
func (s *PassageStore) RecordDocument(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO documents (hash) VALUES (?)`, hash)
	return err
}

// Close closes the underlying database.
func (s *PassageStore) Close() error {
	return s.db.Close()
}
