package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, accountKey, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE account_key = ? AND key = ?`, accountKey, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s/%s]: %w", accountKey, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, accountKey, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (account_key, key, value) VALUES (?, ?, ?)
		ON CONFLICT(account_key, key) DO UPDATE SET value = excluded.value
	`, accountKey, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s/%s]: %w", accountKey, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, accountKey, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE account_key = ? AND key = ?`, accountKey, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s/%s]: %w", accountKey, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, accountKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE account_key = ?`, accountKey)
	if err != nil {
		return fmt.Errorf("failed to clear metadata[%s]: %w", accountKey, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, accountKey string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM metadata WHERE account_key = ?`, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}

	return result, nil
}

// GetJSON decodes the value stored under key into v. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, r Repository, accountKey, key string, v any) (bool, error) {
	b, err := r.Get(ctx, accountKey, key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode metadata[%s/%s]: %w", accountKey, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, r Repository, accountKey, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode metadata[%s/%s]: %w", accountKey, key, err)
	}
	return r.Set(ctx, accountKey, key, b)
}
