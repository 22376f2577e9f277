// Package token issues and verifies the short-lived access tokens handed to
// the operator after a successful credential login. Key material is
// generated at startup; there is no refresh or session protocol here.
package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
)

// Claims is the verified identity extracted from an access token.
type Claims struct {
	AccountID int64
	Role      int
}

// Service manages the signing key and token issuance.
type Service struct {
	key    *rsa.PrivateKey
	kid    string
	issuer string
}

func NewService(issuer string) (*Service, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	// kid derived from the public key so restarts produce a fresh id
	pubBytes, _ := json.Marshal(k.PublicKey)
	h := sha256.Sum256(pubBytes)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &Service{key: k, kid: kid, issuer: issuer}, nil
}

// JWKS returns a minimal JWKS containing the public key.
func (s *Service) JWKS() map[string]any {
	pub := s.key.PublicKey
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(new(big.Int).SetInt64(int64(pub.E)).Bytes())
	jwk := map[string]any{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.kid,
		"n":   n,
		"e":   e,
	}
	return map[string]any{"keys": []any{jwk}}
}

// Issue signs an access token for the given account.
func (s *Service) Issue(a *entity.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  strconv.FormatInt(a.ID, 10),
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
		"role": a.Role,
		"name": a.Username,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

// Parse verifies a token string and extracts the claims this service cares
// about.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return &s.key.PublicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse subject: %w", err)
	}
	role := 0
	if v, ok := mc["role"].(float64); ok {
		role = int(v)
	}
	return &Claims{AccountID: id, Role: role}, nil
}

type contextKey struct{}

// WithClaims attaches verified claims to the request context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves claims placed by the auth middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}
