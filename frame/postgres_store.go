package frame

import (
	"context"
	"time"

	"github.com/jrsteele09/go-embed-auth/internal/db"
	"github.com/jrsteele09/go-embed-auth/internal/errors"
)

const (
	selectSetting = `SELECT value, updated_at FROM settings WHERE key = $1`

	upsertSetting = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// PostgresStore keeps the allow-list in the settings table.
type PostgresStore struct {
	db db.DBTX
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(conn db.DBTX) *PostgresStore {
	return &PostgresStore{db: conn}
}

// Get returns an empty list when nothing has been saved yet.
func (s *PostgresStore) Get(ctx context.Context) (AllowList, error) {
	var list AllowList
	err := s.db.QueryRow(ctx, selectSetting, SettingsKey).Scan(&list.Patterns, &list.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return AllowList{}, nil
		}
		return AllowList{}, errors.Unavailable(err, "[frame PostgresStore Get]")
	}
	return list, nil
}

func (s *PostgresStore) Set(ctx context.Context, patterns string) error {
	if _, err := s.db.Exec(ctx, upsertSetting, SettingsKey, patterns, time.Now().UTC()); err != nil {
		return errors.Unavailable(err, "[frame PostgresStore Set]")
	}
	return nil
}

// Seed stores initial only when no value has been saved yet.
func Seed(ctx context.Context, store Store, initial string) error {
	if initial == "" {
		return nil
	}
	current, err := store.Get(ctx)
	if err != nil {
		return err
	}
	if current.Patterns != "" {
		return nil
	}
	return store.Set(ctx, initial)
}
