package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting/entity"
)

// Repo is the repository for settings backed by PostgreSQL.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing *sqlx.DB connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates the settings table and its index if not exists.
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
  key varchar(64) PRIMARY KEY,
  value TEXT NOT NULL DEFAULT '',
  category varchar(32) NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_settings_category ON settings (category);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns a setting by key or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, key string) (*entity.Setting, error) {
	const q = `SELECT key, value, category, updated_at FROM settings WHERE key=$1`
	var row entity.Setting
	if err := r.db.GetContext(ctx, &row, q, key); err != nil {
		return nil, err
	}
	return &row, nil
}

// Put upserts a setting.
func (r *Repo) Put(ctx context.Context, s *entity.Setting) error {
	const q = `INSERT INTO settings (key, value, category, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, category=EXCLUDED.category, updated_at=NOW()`
	_, err := r.db.ExecContext(ctx, q, s.Key, s.Value, s.Category)
	return err
}

// ListByCategory returns all settings in a category ordered by key.
func (r *Repo) ListByCategory(ctx context.Context, category string) ([]*entity.Setting, error) {
	const q = `SELECT key, value, category, updated_at FROM settings WHERE category=$1 ORDER BY key`
	var rows []*entity.Setting
	if err := r.db.SelectContext(ctx, &rows, q, category); err != nil {
		return nil, err
	}
	return rows, nil
}
