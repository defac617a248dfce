package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tasklens/internal/engine"
)

var _ engine.PreferenceStore = (*Store)(nil)

// LoadViewPreference returns the stored blob for viewKey, or nil when none was saved.
func (s *Store) LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM view_prefs WHERE view_key = ?`, strings.TrimSpace(viewKey)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(blob), nil
}

func (s *Store) SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error {
	viewKey = strings.TrimSpace(viewKey)
	if viewKey == "" {
		return errors.New("view key is empty")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO view_prefs(view_key, blob, updated_at_unixms) VALUES(?, ?, ?)
		ON CONFLICT(view_key) DO UPDATE SET blob = excluded.blob, updated_at_unixms = excluded.updated_at_unixms`,
		viewKey, string(blob), time.Now().UTC().UnixMilli())
	return err
}
