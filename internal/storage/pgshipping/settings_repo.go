package pgshipping

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetSetting returns ok=false when the key was never written.
func (s *Storage) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select setting")
	}
	return v, true, nil
}

func (s *Storage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, key, value)
	return errors.Wrap(err, "upsert setting")
}
