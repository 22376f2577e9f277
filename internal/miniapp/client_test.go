package miniapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchangeVia(t *testing.T, handler http.HandlerFunc) (Identity, error) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := NewClient(2 * time.Second)
	return c.ExchangeCode(context.Background(), ExchangeRequest{
		URLFormat: ts.URL + "/sns/jscode2session?appid=%s&secret=%s&js_code=%s",
		AppID:     "wx123",
		AppSecret: "sec456",
		Code:      "code789",
	})
}

func TestExchangeCodeSuccess(t *testing.T) {
	var gotQuery map[string]string
	identity, err := exchangeVia(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"appid":   r.URL.Query().Get("appid"),
			"secret":  r.URL.Query().Get("secret"),
			"js_code": r.URL.Query().Get("js_code"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"openid":"OID1","session_key":"sk","unionid":"u1"}`))
	})
	require.NoError(t, err)

	assert.Equal(t, "OID1", identity.OpenID)
	assert.Equal(t, "sk", identity.SessionKey)
	assert.Equal(t, "u1", identity.UnionID)
	assert.Equal(t, map[string]string{"appid": "wx123", "secret": "sec456", "js_code": "code789"}, gotQuery)
}

func TestExchangeCodeNonOKStatus(t *testing.T) {
	_, err := exchangeVia(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExchangeCodeMissingOpenid(t *testing.T) {
	_, err := exchangeVia(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExchangeCodeProviderErrcode(t *testing.T) {
	_, err := exchangeVia(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":40029,"errmsg":"invalid code"}`))
	})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "40029")
}

func TestExchangeCodeUndecodableBody(t *testing.T) {
	_, err := exchangeVia(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExchangeCodeTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(500 * time.Millisecond)
	_, err := c.ExchangeCode(context.Background(), ExchangeRequest{
		URLFormat: url + "/exchange?a=%s&s=%s&c=%s",
		AppID:     "wx123",
		AppSecret: "sec456",
		Code:      "code789",
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExchangeCodeDefaultsURLFormat(t *testing.T) {
	c := NewClient(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	// The default template points at the real provider; the canceled
	// context keeps the test offline while still exercising the path.
	_, err := c.ExchangeCode(ctx, ExchangeRequest{AppID: "wx123", AppSecret: "sec456", Code: "code789"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
