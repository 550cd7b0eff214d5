package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func TestJWTProvider_IssueAndValidateRoundtrip(t *testing.T) {
	p, err := token.NewJWTProvider("kid-1", testPEM(t))
	require.NoError(t, err)

	userID, appID := uuid.New(), uuid.New()
	tok, err := p.IssueAccess(userID, appID, time.Minute)
	require.NoError(t, err)

	claims, err := p.ValidateAccess(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, appID, claims.AppID)
	assert.Equal(t, token.AccessTokenType, claims.Type)
}

func TestJWTProvider_ValidateAccess_ExpiredToken(t *testing.T) {
	p, err := token.NewJWTProvider("kid-1", testPEM(t))
	require.NoError(t, err)

	tok, err := p.IssueAccess(uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = p.ValidateAccess(tok)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindTokenExpired, e.Kind)
}

func TestJWTProvider_ValidateAccess_RejectsMismatchedKey(t *testing.T) {
	p1, err := token.NewJWTProvider("kid-1", testPEM(t))
	require.NoError(t, err)
	p2, err := token.NewJWTProvider("kid-2", testPEM(t))
	require.NoError(t, err)

	tok, err := p1.IssueAccess(uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = p2.ValidateAccess(tok)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindInvalidToken, e.Kind)
}

func TestJWTProvider_GetJWKS(t *testing.T) {
	p, err := token.NewJWTProvider("kid-1", testPEM(t))
	require.NoError(t, err)

	jwks := p.GetJWKS()
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "kid-1", jwks.Keys[0].Kid)
	assert.Equal(t, "RSA", jwks.Keys[0].Kty)
	assert.Equal(t, "RS256", jwks.Keys[0].Alg)
}

func TestNewJWTProvider_RejectsEmptyKey(t *testing.T) {
	_, err := token.NewJWTProvider("kid-1", "")
	require.Error(t, err)
}
