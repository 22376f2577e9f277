package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	published int64
	views     int64
	likes     int64
	err       error
}

func (f *fakeStore) CountPublished(context.Context) (int64, error) { return f.published, f.err }
func (f *fakeStore) SumViews(context.Context) (int64, error)       { return f.views, f.err }
func (f *fakeStore) SumLikes(context.Context) (int64, error)       { return f.likes, f.err }

func TestSiteInfo(t *testing.T) {
	svc := NewService(&fakeStore{published: 7, views: 1200, likes: 34})

	site, err := svc.SiteInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Site{PublishedPosts: 7, Views: 1200, Likes: 34}, site)
}

func TestSiteInfoPropagatesStoreErrors(t *testing.T) {
	wantErr := errors.New("db down")
	svc := NewService(&fakeStore{err: wantErr})

	_, err := svc.SiteInfo(context.Background())
	assert.ErrorIs(t, err, wantErr)
}
