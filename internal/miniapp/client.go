// Package miniapp encapsulates the code2session exchange against the
// mini-program identity provider. One blocking call per login attempt; the
// one-time code is single-use upstream so there is no retry here.
package miniapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultLoginURLFormat is used when no endpoint template is configured.
// Positional order of the substituted values is app id, app secret, code.
const DefaultLoginURLFormat = "https://api.weixin.qq.com/sns/jscode2session?appid=%s&secret=%s&js_code=%s&grant_type=authorization_code"

var (
	// ErrUnavailable covers transport failures and non-200 statuses.
	ErrUnavailable = errors.New("identity provider unavailable")
	// ErrMalformedResponse covers 200 responses whose body cannot be
	// decoded or carries no openid.
	ErrMalformedResponse = errors.New("identity provider returned malformed payload")
)

// Identity is the normalized result of a successful code exchange.
type Identity struct {
	OpenID     string
	SessionKey string
	UnionID    string
}

// ExchangeRequest carries the values read from settings plus the
// caller-supplied one-time code.
type ExchangeRequest struct {
	URLFormat string
	AppID     string
	AppSecret string
	Code      string
}

// Exchanger is the injected capability the account service depends on, so
// the network call can be faked in tests.
type Exchanger interface {
	ExchangeCode(ctx context.Context, req ExchangeRequest) (Identity, error)
}

// Client performs the exchange over HTTP with a bounded timeout.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

const maxResponseBytes = 1 << 20

func (c *Client) ExchangeCode(ctx context.Context, req ExchangeRequest) (Identity, error) {
	urlFormat := req.URLFormat
	if urlFormat == "" {
		urlFormat = DefaultLoginURLFormat
	}
	u := fmt.Sprintf(urlFormat, req.AppID, req.AppSecret, req.Code)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var payload struct {
		OpenID     string `json:"openid"`
		SessionKey string `json:"session_key"`
		UnionID    string `json:"unionid"`
		ErrCode    int    `json:"errcode"`
		ErrMsg     string `json:"errmsg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.OpenID == "" {
		// The provider reports its own failures inside a 200 body.
		if payload.ErrCode != 0 {
			return Identity{}, fmt.Errorf("%w: errcode %d: %s", ErrMalformedResponse, payload.ErrCode, payload.ErrMsg)
		}
		return Identity{}, fmt.Errorf("%w: missing openid", ErrMalformedResponse)
	}
	return Identity{OpenID: payload.OpenID, SessionKey: payload.SessionKey, UnionID: payload.UnionID}, nil
}
