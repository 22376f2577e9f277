package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/miniapp"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

// HandlerConfig carries the caller-side login policy: the service only
// counts failures, the threshold decision lives here.
type HandlerConfig struct {
	LockoutThreshold int
	TokenTTL         time.Duration
}

// HandlerConfigFromEnv reads the login policy from environment variables.
func HandlerConfigFromEnv() HandlerConfig {
	threshold := 5
	if v := os.Getenv("LOGIN_LOCKOUT_THRESHOLD"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			threshold = parsed
		}
	}
	return HandlerConfig{LockoutThreshold: threshold, TokenTTL: 2 * time.Hour}
}

// Handler exposes the HTTP endpoints for credential login, mini-program
// login and operator self-service.
type Handler struct {
	svc     *Service
	tokens  *token.Service
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	cfg     HandlerConfig
}

func NewHandler(svc *Service, tokens *token.Service, m *metrics.Metrics, logger *zap.SugaredLogger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}
	return &Handler{svc: svc, tokens: tokens, metrics: m, logger: logger, cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies operator credentials. Failures bump the counter; reaching
// the threshold disables further attempts until recovery.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" || (req.Username == "" && req.Email == "") {
		utilities.Fail(w, http.StatusBadRequest, "username or email, and password are required")
		return
	}

	primary, err := h.svc.Primary(ctx)
	if err != nil {
		h.logger.Errorw("load primary account", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	if primary.IsZero() {
		utilities.Fail(w, http.StatusServiceUnavailable, "no operator account provisioned")
		return
	}
	if !primary.LoginEnabled {
		h.metrics.IncLoginAttempt("locked")
		utilities.Fail(w, http.StatusForbidden, "login disabled after repeated failures")
		return
	}

	var acct *entity.Account
	if req.Email != "" {
		acct, err = h.svc.AuthenticateByEmail(ctx, req.Email, req.Password)
	} else {
		acct, err = h.svc.AuthenticateByUsername(ctx, req.Username, req.Password)
	}
	if errors.Is(err, ErrNotFound) {
		count, ferr := h.svc.RecordLoginFailure(ctx)
		if ferr != nil {
			h.logger.Errorw("record login failure", "err", ferr)
		} else if count >= h.cfg.LockoutThreshold {
			if derr := h.svc.SetLoginEnabled(ctx, false); derr != nil {
				h.logger.Errorw("disable login", "err", derr)
			} else {
				h.metrics.IncLockouts()
				h.logger.Warnw("operator login disabled", "failures", count)
			}
		}
		h.metrics.IncLoginAttempt("failure")
		utilities.Fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Errorw("credential lookup", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "login failed")
		return
	}

	if _, err := h.svc.ResetToNormal(ctx); err != nil {
		h.logger.Warnw("reset login state", "err", err)
	}
	tok, err := h.tokens.Issue(acct, h.cfg.TokenTTL)
	if err != nil {
		h.logger.Errorw("issue token", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.metrics.IncLoginAttempt("success")
	utilities.OK(w, map[string]any{"token": tok, "account": acct})
}

// MiniAppLogin drives the code exchange and provisioning flow. Integration
// faults surface as clean failure envelopes, never as half-applied state.
func (h *Handler) MiniAppLogin(w http.ResponseWriter, r *http.Request) {
	var req MiniAppLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		utilities.Fail(w, http.StatusBadRequest, "js_code is required")
		return
	}

	acct, err := h.svc.MiniAppLogin(r.Context(), req)
	switch {
	case err == nil:
		utilities.OK(w, acct)
	case errors.Is(err, miniapp.ErrUnavailable):
		h.logger.Warnw("mini-program login", "err", err)
		utilities.Fail(w, http.StatusBadGateway, "identity provider unavailable")
	case errors.Is(err, miniapp.ErrMalformedResponse):
		h.logger.Warnw("mini-program login", "err", err)
		utilities.Fail(w, http.StatusBadGateway, "identity provider returned malformed payload")
	default:
		h.logger.Errorw("mini-program login", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "login failed")
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword re-verifies the current password before storing the new
// one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := token.FromContext(r.Context())
	if !ok {
		utilities.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		utilities.Fail(w, http.StatusBadRequest, "new_password is required")
		return
	}
	err := h.svc.ChangePassword(r.Context(), claims.AccountID, req.OldPassword, req.NewPassword)
	if errors.Is(err, ErrNotFound) {
		utilities.Fail(w, http.StatusForbidden, "current password does not match")
		return
	}
	if err != nil {
		h.logger.Errorw("change password", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "password change failed")
		return
	}
	utilities.OK(w, nil)
}

// Profile returns the operator account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	primary, err := h.svc.Primary(r.Context())
	if err != nil {
		h.logger.Errorw("load primary account", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "profile load failed")
		return
	}
	if primary.IsZero() {
		utilities.Fail(w, http.StatusNotFound, "no operator account provisioned")
		return
	}
	utilities.OK(w, primary)
}

type profileRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// SaveProfile updates the operator's display attributes.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	primary, err := h.svc.Primary(r.Context())
	if err != nil || primary.IsZero() {
		utilities.Fail(w, http.StatusNotFound, "no operator account provisioned")
		return
	}
	primary.Username = req.Username
	primary.Email = req.Email
	primary.DisplayName = req.DisplayName
	primary.AvatarURL = req.AvatarURL
	if err := h.svc.SaveProfile(r.Context(), primary); err != nil {
		h.logger.Errorw("save profile", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "profile save failed")
		return
	}
	utilities.OK(w, primary)
}
