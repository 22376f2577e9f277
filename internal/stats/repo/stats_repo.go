package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Post status and type tags mirrored from the publishing side of the blog.
const (
	StatusPublished = 0
	TypePost        = "post"
)

// StatsRepo computes read-only rollups over the posts table.
type StatsRepo struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) *StatsRepo { return &StatsRepo{db: db} }

// EnsureTable creates the posts table if not exists (idempotent). The
// publishing service owns writes; this service only aggregates.
func (r *StatsRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS posts (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  status INT NOT NULL DEFAULT 0,
  type TEXT NOT NULL DEFAULT 'post',
  views BIGINT NOT NULL DEFAULT 0,
  likes BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_status_type ON posts (status, type);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// CountPublished returns the number of published posts of the regular type.
func (r *StatsRepo) CountPublished(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM posts WHERE status=$1 AND type=$2`
	var n int64
	if err := r.db.GetContext(ctx, &n, q, StatusPublished, TypePost); err != nil {
		return 0, err
	}
	return n, nil
}

// SumViews totals the view counters across all posts.
func (r *StatsRepo) SumViews(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(SUM(views), 0) FROM posts`
	var n int64
	if err := r.db.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}
	return n, nil
}

// SumLikes totals the like counters across all posts.
func (r *StatsRepo) SumLikes(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(SUM(likes), 0) FROM posts`
	var n int64
	if err := r.db.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}
	return n, nil
}
