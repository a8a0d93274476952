package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SQLiteTokenStore keeps the token as one row of the on-device kv table.
type SQLiteTokenStore struct {
	db  *sql.DB
	key string
}

// NewSQLiteTokenStore constructs a store; the kv table must already exist.
func NewSQLiteTokenStore(db *sql.DB, key string) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db, key: key}
}

func (s *SQLiteTokenStore) Get(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteTokenStore) Set(ctx context.Context, token string) error {
	const query = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, s.key, token)
	return err
}

func (s *SQLiteTokenStore) Remove(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, s.key)
	return err
}
