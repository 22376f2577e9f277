package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
)

func TestIssueAndParse(t *testing.T) {
	svc, err := NewService("blog-identity")
	require.NoError(t, err)

	a := &entity.Account{ID: 42, Username: "admin", Role: entity.RoleAdmin}
	tok, err := svc.Issue(a, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, entity.RoleAdmin, claims.Role)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc, err := NewService("blog-identity")
	require.NoError(t, err)

	_, err = svc.Parse("not-a-token")
	assert.Error(t, err)
}

func TestParseRejectsForeignSigner(t *testing.T) {
	issuerA, err := NewService("blog-identity")
	require.NoError(t, err)
	issuerB, err := NewService("blog-identity")
	require.NoError(t, err)

	tok, err := issuerA.Issue(&entity.Account{ID: 1, Role: entity.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = issuerB.Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	svc, err := NewService("blog-identity")
	require.NoError(t, err)

	tok, err := svc.Issue(&entity.Account{ID: 1, Role: entity.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	issuerA, err := NewService("issuer-a")
	require.NoError(t, err)

	tok, err := issuerA.Issue(&entity.Account{ID: 1}, time.Hour)
	require.NoError(t, err)

	// same key, different configured issuer
	issuerA.issuer = "issuer-b"
	_, err = issuerA.Parse(tok)
	assert.Error(t, err)
}

func TestJWKSContainsSigningKey(t *testing.T) {
	svc, err := NewService("blog-identity")
	require.NoError(t, err)

	jwks := svc.JWKS()
	keys, ok := jwks["keys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 1)
	key, ok := keys[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "RS256", key["alg"])
	assert.NotEmpty(t, key["n"])
}
