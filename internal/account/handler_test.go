package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/miniapp"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

func newTestHandler(t *testing.T, store *fakeStore, ex *fakeExchanger) (*Handler, *token.Service) {
	t.Helper()
	svc := newTestService(store, nil, ex)
	tokens, err := token.NewService("test")
	require.NoError(t, err)
	cfg := HandlerConfig{LockoutThreshold: 3, TokenTTL: time.Hour}
	return NewHandler(svc, tokens, nil, nil, cfg), tokens
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any) (*httptest.ResponseRecorder, utilities.Result) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h(rec, req)

	var result utilities.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return rec, result
}

func TestHandlerLoginSuccess(t *testing.T) {
	store := newFakeStore()
	admin := seedAdmin(store)
	admin.LoginErrorCount = 2
	h, tokens := newTestHandler(t, store, nil)

	rec, result := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login",
		map[string]string{"username": "admin", "password": "secret"})

	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	tok, _ := data["token"].(string)
	require.NotEmpty(t, tok)

	claims, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.AccountID)

	// success resets the counter
	assert.Equal(t, 0, store.accounts[admin.ID].LoginErrorCount)
	assert.True(t, store.accounts[admin.ID].LoginEnabled)
}

func TestHandlerLoginByEmail(t *testing.T) {
	store := newFakeStore()
	seedAdmin(store)
	h, _ := newTestHandler(t, store, nil)

	rec, _ := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login",
		map[string]string{"email": "admin@example.com", "password": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerLoginLocksAfterThreshold(t *testing.T) {
	store := newFakeStore()
	admin := seedAdmin(store)
	h, _ := newTestHandler(t, store, nil)

	bad := map[string]string{"username": "admin", "password": "wrong"}
	for i := 0; i < 3; i++ {
		rec, result := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login", bad)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		assert.Nil(t, result.Data)
	}

	assert.Equal(t, 3, store.accounts[admin.ID].LoginErrorCount)
	assert.False(t, store.accounts[admin.ID].LoginEnabled)

	// even a correct password is rejected once disabled
	rec, _ := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login",
		map[string]string{"username": "admin", "password": "secret"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerLoginWithoutOperator(t *testing.T) {
	h, _ := newTestHandler(t, newFakeStore(), nil)

	rec, _ := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login",
		map[string]string{"username": "admin", "password": "secret"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerLoginValidation(t *testing.T) {
	h, _ := newTestHandler(t, newFakeStore(), nil)

	rec, _ := doJSON(t, h.Login, http.MethodPost, "/blog-identity/admin/login",
		map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMiniAppLoginSuccess(t *testing.T) {
	store := newFakeStore()
	h, _ := newTestHandler(t, store, &fakeExchanger{identity: miniapp.Identity{OpenID: "OID1"}})

	rec, result := doJSON(t, h.MiniAppLogin, http.MethodPost, "/blog-identity/miniapp/login",
		map[string]string{"js_code": "code789", "username": "Alice", "avatar_url": "http://a/x.png"})

	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OID1", data["openid"])
	assert.Equal(t, "Alice", data["username"])
	assert.Len(t, store.accounts, 1)
}

func TestHandlerMiniAppLoginProviderUnavailable(t *testing.T) {
	h, _ := newTestHandler(t, newFakeStore(),
		&fakeExchanger{err: fmt.Errorf("%w: status 500", miniapp.ErrUnavailable)})

	rec, result := doJSON(t, h.MiniAppLogin, http.MethodPost, "/blog-identity/miniapp/login",
		map[string]string{"js_code": "code789"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "identity provider unavailable", result.Message)
	assert.Nil(t, result.Data)
}

func TestHandlerMiniAppLoginMalformedResponse(t *testing.T) {
	h, _ := newTestHandler(t, newFakeStore(),
		&fakeExchanger{err: fmt.Errorf("%w: missing openid", miniapp.ErrMalformedResponse)})

	rec, result := doJSON(t, h.MiniAppLogin, http.MethodPost, "/blog-identity/miniapp/login",
		map[string]string{"js_code": "code789"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "identity provider returned malformed payload", result.Message)
	assert.Nil(t, result.Data)
}

func TestHandlerMiniAppLoginRequiresCode(t *testing.T) {
	h, _ := newTestHandler(t, newFakeStore(), nil)

	rec, _ := doJSON(t, h.MiniAppLogin, http.MethodPost, "/blog-identity/miniapp/login",
		map[string]string{"username": "Alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerChangePassword(t *testing.T) {
	store := newFakeStore()
	admin := seedAdmin(store)
	h, _ := newTestHandler(t, store, nil)

	body, _ := json.Marshal(map[string]string{"old_password": "secret", "new_password": "next"})
	req := httptest.NewRequest(http.MethodPost, "/blog-identity/admin/password", bytes.NewReader(body))
	req = req.WithContext(token.WithClaims(req.Context(), &token.Claims{AccountID: admin.ID, Role: admin.Role}))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "next", store.accounts[admin.ID].Password)
}

func TestHandlerChangePasswordRejectsWrongCurrent(t *testing.T) {
	store := newFakeStore()
	admin := seedAdmin(store)
	h, _ := newTestHandler(t, store, nil)

	body, _ := json.Marshal(map[string]string{"old_password": "wrong", "new_password": "next"})
	req := httptest.NewRequest(http.MethodPost, "/blog-identity/admin/password", bytes.NewReader(body))
	req = req.WithContext(token.WithClaims(req.Context(), &token.Claims{AccountID: admin.ID, Role: admin.Role}))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "secret", store.accounts[admin.ID].Password)
}
