package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when no user has the given name.
var ErrUserNotFound = errors.New("user not found")

// PutUser creates username or replaces its password hash.
func (db *DB) PutUser(ctx context.Context, username string, hash []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = CURRENT_TIMESTAMP`,
		username, string(hash))
	if err != nil {
		return fmt.Errorf("put user %q: %w", username, err)
	}
	return nil
}

// PasswordHash returns the stored bcrypt hash for username.
func (db *DB) PasswordHash(ctx context.Context, username string) ([]byte, error) {
	var hash string
	err := db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", username, err)
	}
	return []byte(hash), nil
}

// DeleteUser removes username.
func (db *DB) DeleteUser(ctx context.Context, username string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("delete user %q: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns every username in alphabetical order.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
