// Package stats serves the public site rollup shown by the mini-program
// front page. Read-only; no state transitions live here.
package stats

import "context"

// Site is the aggregate snapshot returned to callers.
type Site struct {
	PublishedPosts int64 `json:"published_posts"`
	Views          int64 `json:"views"`
	Likes          int64 `json:"likes"`
}

// Store is the rollup surface; *repo.StatsRepo is the production
// implementation.
type Store interface {
	CountPublished(ctx context.Context) (int64, error)
	SumViews(ctx context.Context) (int64, error)
	SumLikes(ctx context.Context) (int64, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// SiteInfo computes the published-post count plus view and like sums.
func (s *Service) SiteInfo(ctx context.Context) (Site, error) {
	published, err := s.store.CountPublished(ctx)
	if err != nil {
		return Site{}, err
	}
	views, err := s.store.SumViews(ctx)
	if err != nil {
		return Site{}, err
	}
	likes, err := s.store.SumLikes(ctx)
	if err != nil {
		return Site{}, err
	}
	return Site{PublishedPosts: published, Views: views, Likes: likes}, nil
}
