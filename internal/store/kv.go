package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetValue stores value under key, replacing any previous value.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	if err := s.ready("set value"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("set value %q: %w", key, err)
	}
	return nil
}

// Value returns the value stored under key.
// Returns found=false (and no error) if the key is absent.
func (s *Store) Value(ctx context.Context, key string) (string, bool, error) {
	if err := s.ready("get value"); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get value %q: %w", key, err)
	}
	return value, true, nil
}

// DeleteValue removes key. Removing an absent key is not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	if err := s.ready("delete value"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete value %q: %w", key, err)
	}
	return nil
}
