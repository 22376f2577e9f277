package setting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/cache"
)

// Well-known keys for the mini-program integration.
const (
	KeyMiniAppID       = "miniapp.app_id"
	KeyMiniAppSecret   = "miniapp.app_secret"
	KeyMiniAppLoginURL = "miniapp.login_url_format"

	CategoryMiniApp = "miniapp"
)

// ErrNotFound indicates no setting exists under the requested key.
var ErrNotFound = errors.New("setting not found")

// Store is the persistence surface the service needs; *repo.Repo is the
// production implementation.
type Store interface {
	Get(ctx context.Context, key string) (*entity.Setting, error)
	Put(ctx context.Context, s *entity.Setting) error
	ListByCategory(ctx context.Context, category string) ([]*entity.Setting, error)
}

// Service reads and writes settings with a cache-aside layer over redis.
// A nil cache client degrades to direct reads.
type Service struct {
	store  Store
	cache  *cache.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewService(store Store, c *cache.Client, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, cache: c, ttl: 10 * time.Minute, logger: logger}
}

const cachePrefix = "blog-identity:setting:"

// Value returns the string value stored under key, or ErrNotFound. Cache
// failures are logged and fall through to the database.
func (s *Service) Value(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		v, err := s.cache.Get(ctx, cachePrefix+key).Result()
		if err == nil {
			return v, nil
		}
		if !s.cache.IsMiss(err) {
			s.logger.Debugw("setting cache read", "key", key, "err", err)
		}
	}
	st, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cachePrefix+key, st.Value, s.ttl).Err(); err != nil {
			s.logger.Debugw("setting cache write", "key", key, "err", err)
		}
	}
	return st.Value, nil
}

// SetValue upserts a setting and invalidates its cache entry.
func (s *Service) SetValue(ctx context.Context, key, value, category string) error {
	if key == "" {
		return errors.New("key is required")
	}
	if err := s.store.Put(ctx, &entity.Setting{Key: key, Value: value, Category: category}); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cachePrefix+key).Err(); err != nil {
			s.logger.Warnw("setting cache invalidate", "key", key, "err", err)
		}
	}
	return nil
}

// List returns all settings within a category, bypassing the cache.
func (s *Service) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	return s.store.ListByCategory(ctx, category)
}
