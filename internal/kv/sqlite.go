package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_items (
	item_key   TEXT PRIMARY KEY,
	item_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteStore persists items in a single SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (or creates) the database file with WAL journaling.
func OpenSQLite(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteStore opens path and ensures the kv_items table exists.
func NewSQLiteStore(ctx context.Context, path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv_items: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT item_value FROM kv_items WHERE item_key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn().Err(err).Str("key", key).Msg("sqlite get failed")
		}
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("sqlite set failed")
	}
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_items WHERE item_key = ?`, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("sqlite remove failed")
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
