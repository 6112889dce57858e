package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetConfigValue returns a process-wide scalar setting.
func (d *DB) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := d.Pool.QueryRow(ctx, `SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrConfigNotFound
	}
	return value, err
}

// SetConfigValue stores a process-wide scalar setting.
func (d *DB) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO app_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}
