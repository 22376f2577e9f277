package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/miniapp"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/setting"
)

// ErrNotFound is the negative lookup result: no account matches the given
// credentials. A normal value, not a system fault.
var ErrNotFound = errors.New("account not found")

// Store is the persistence surface the service needs. *repo.AccountRepo is
// the production implementation; tests use an in-memory fake. Lookups are
// exact-match and report misses as sql.ErrNoRows.
type Store interface {
	FindByUsernameAndPassword(ctx context.Context, username, password string) (*entity.Account, error)
	FindByEmailAndPassword(ctx context.Context, email, password string) (*entity.Account, error)
	FindByIDAndPassword(ctx context.Context, id int64, password string) (*entity.Account, error)
	FindPrimary(ctx context.Context) (*entity.Account, error)
	FindByOpenid(ctx context.Context, openid string) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) (int64, error)
	SetLoginEnabled(ctx context.Context, id int64, enabled bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	IncrementLoginError(ctx context.Context, id int64) (int, error)
	ResetToNormal(ctx context.Context, id int64, at time.Time) (*entity.Account, error)
	UpdatePassword(ctx context.Context, id int64, password string) error
	UpdateProfile(ctx context.Context, a *entity.Account) error
}

// Settings exposes the option values the mini-program integration reads.
type Settings interface {
	Value(ctx context.Context, key string) (string, error)
}

// MiniAppLoginRequest is the caller-supplied payload for the provisioning
// flow: one-time code plus the display attributes of the end user.
type MiniAppLoginRequest struct {
	Code      string `json:"js_code"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Service owns credential verification, lockout bookkeeping and the
// mini-program login orchestration.
type Service struct {
	store     Store
	settings  Settings
	exchanger miniapp.Exchanger
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

func NewService(store Store, settings Settings, exchanger miniapp.Exchanger, m *metrics.Metrics, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, settings: settings, exchanger: exchanger, metrics: m, logger: logger}
}

func (s *Service) lookup(a *entity.Account, err error) (*entity.Account, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// AuthenticateByUsername returns the account matching both fields exactly,
// or ErrNotFound.
func (s *Service) AuthenticateByUsername(ctx context.Context, username, password string) (*entity.Account, error) {
	return s.lookup(s.store.FindByUsernameAndPassword(ctx, username, password))
}

// AuthenticateByEmail is the email-keyed variant of the same contract.
func (s *Service) AuthenticateByEmail(ctx context.Context, email, password string) (*entity.Account, error) {
	return s.lookup(s.store.FindByEmailAndPassword(ctx, email, password))
}

// VerifyPassword re-confirms identity before a sensitive change.
func (s *Service) VerifyPassword(ctx context.Context, id int64, password string) (*entity.Account, error) {
	return s.lookup(s.store.FindByIDAndPassword(ctx, id, password))
}

// Primary returns the designated operator account, or a zero-valued
// placeholder when none exists. Callers must check IsZero before treating
// the result as a real identity.
func (s *Service) Primary(ctx context.Context) (*entity.Account, error) {
	a, err := s.store.FindPrimary(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &entity.Account{}, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) primaryID(ctx context.Context) (int64, error) {
	a, err := s.Primary(ctx)
	if err != nil {
		return 0, err
	}
	if a.IsZero() {
		return 0, ErrNotFound
	}
	return a.ID, nil
}

// SetLoginEnabled toggles the primary account's session eligibility.
func (s *Service) SetLoginEnabled(ctx context.Context, enabled bool) error {
	id, err := s.primaryID(ctx)
	if err != nil {
		return err
	}
	return s.store.SetLoginEnabled(ctx, id, enabled)
}

// RecordLogin stamps a successful credential login on the primary account.
func (s *Service) RecordLogin(ctx context.Context, at time.Time) (*entity.Account, error) {
	a, err := s.Primary(ctx)
	if err != nil {
		return nil, err
	}
	if a.IsZero() {
		return nil, ErrNotFound
	}
	if err := s.store.TouchLastLogin(ctx, a.ID, at); err != nil {
		return nil, err
	}
	a.LastLoginAt = &at
	return a, nil
}

// RecordLoginFailure increments the primary account's failure counter and
// returns the new count. This is the sole increment path; whether the count
// warrants a lockout is the caller's decision.
func (s *Service) RecordLoginFailure(ctx context.Context) (int, error) {
	id, err := s.primaryID(ctx)
	if err != nil {
		return 0, err
	}
	return s.store.IncrementLoginError(ctx, id)
}

// ResetToNormal is the recovery transition: re-enable login, zero the
// failure counter, refresh the last-login timestamp.
func (s *Service) ResetToNormal(ctx context.Context) (*entity.Account, error) {
	id, err := s.primaryID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ResetToNormal(ctx, id, time.Now())
}

// ChangePassword verifies the old password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.New("new password must not be empty")
	}
	if _, err := s.VerifyPassword(ctx, id, oldPassword); err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, id, newPassword)
}

// SaveProfile persists the mutable display attributes of an account.
func (s *Service) SaveProfile(ctx context.Context, a *entity.Account) error {
	return s.store.UpdateProfile(ctx, a)
}

// MiniAppLogin exchanges the one-time code for an openid and returns the
// matching account, provisioning a member account on first sight. Idempotent
// on openid: concurrent first logins race on the unique index and the loser
// re-fetches instead of duplicating the identity.
func (s *Service) MiniAppLogin(ctx context.Context, req MiniAppLoginRequest) (*entity.Account, error) {
	appID, err := s.settings.Value(ctx, setting.KeyMiniAppID)
	if err != nil {
		return nil, fmt.Errorf("read mini-program app id: %w", err)
	}
	appSecret, err := s.settings.Value(ctx, setting.KeyMiniAppSecret)
	if err != nil {
		return nil, fmt.Errorf("read mini-program app secret: %w", err)
	}
	urlFormat, err := s.settings.Value(ctx, setting.KeyMiniAppLoginURL)
	if err != nil {
		if !errors.Is(err, setting.ErrNotFound) {
			return nil, fmt.Errorf("read mini-program login url: %w", err)
		}
		urlFormat = miniapp.DefaultLoginURLFormat
	}

	start := time.Now()
	identity, err := s.exchanger.ExchangeCode(ctx, miniapp.ExchangeRequest{
		URLFormat: urlFormat,
		AppID:     appID,
		AppSecret: appSecret,
		Code:      req.Code,
	})
	s.metrics.ObserveExchange(time.Since(start))
	if err != nil {
		return nil, err
	}

	a, err := s.store.FindByOpenid(ctx, identity.OpenID)
	switch {
	case err == nil:
		// Known identity: plain re-login.
	case errors.Is(err, sql.ErrNoRows):
		a, err = s.provision(ctx, identity.OpenID, req)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("lookup by openid: %w", err)
	}

	// Keep last-login consistent with the credential flow. Best effort: a
	// failed stamp must not turn a completed login into an error.
	now := time.Now()
	if err := s.store.TouchLastLogin(ctx, a.ID, now); err != nil {
		s.logger.Warnw("stamp mini-program login", "account_id", a.ID, "err", err)
	} else {
		a.LastLoginAt = &now
	}
	return a, nil
}

func (s *Service) provision(ctx context.Context, openid string, req MiniAppLoginRequest) (*entity.Account, error) {
	a := &entity.Account{
		Openid:       &openid,
		Username:     req.Username,
		AvatarURL:    req.AvatarURL,
		Role:         entity.RoleMember,
		LoginEnabled: true,
	}
	if _, err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, repo.ErrDuplicateOpenid) {
			// Lost the first-login race: the identity exists now.
			return s.store.FindByOpenid(ctx, openid)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.metrics.IncAccountsProvisioned()
	s.logger.Infow("provisioned member account", "account_id", a.ID)
	return a, nil
}
