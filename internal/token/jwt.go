// Package token implements component B: access-token issuance and
// validation, refresh-token rotation, and SSO session lifecycle.
package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
)

// AccessTokenType marks the JWT's token_type claim so an access token
// cannot be confused with any other self-describing credential the
// platform might one day issue.
const AccessTokenType = "access"

// Claims is the JWT payload for an access token (§4.B).
type Claims struct {
	UserID uuid.UUID `json:"sub_uid"`
	AppID  uuid.UUID `json:"app_id"`
	Type   string    `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider issues and validates access tokens. Parameterized by the
// signing key rather than a package singleton, per the re-architecture
// guidance in §9.
type Provider interface {
	IssueAccess(userID, appID uuid.UUID, ttl time.Duration) (string, error)
	ValidateAccess(tokenString string) (*Claims, error)
	GetJWKS() JWKS
}

// JWTProvider is the production Provider: RS256-signed, one active
// signing key identified by kid.
type JWTProvider struct {
	kid        string
	privateKey *rsa.PrivateKey
}

// NewJWTProvider loads an RSA private key from a PEM blob, supporting
// both PKCS1 ("RSA PRIVATE KEY") and PKCS8 ("PRIVATE KEY") encodings. kid
// identifies this key in the JWKS document and in token headers. The
// provider holds this one key only: the JWKS lists just it, and tokens
// signed by any other key fail validation.
func NewJWTProvider(kid, pemKey string) (*JWTProvider, error) {
	if pemKey == "" {
		return nil, errors.New("token: JWT_PRIVATE_KEY is empty")
	}
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("token: failed to decode PEM block")
	}

	var key *rsa.PrivateKey
	var err error
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		var parsed interface{}
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			key, ok = parsed.(*rsa.PrivateKey)
			if !ok {
				err = errors.New("token: PKCS8 key is not RSA")
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &JWTProvider{kid: kid, privateKey: key}, nil
}

func (p *JWTProvider) IssueAccess(userID, appID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		AppID:  appID,
		Type:   AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = p.kid
	return t.SignedString(p.privateKey)
}

// ValidateAccess checks signature, expiry, token_type, and the presence
// of app_id (§4.B validation rules; tokens minted before app-binding
// existed carry no app_id and are rejected).
func (p *JWTProvider) ValidateAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return &p.privateKey.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.New(errs.KindTokenExpired, "access token expired")
		}
		return nil, errs.New(errs.KindInvalidToken, "access token invalid")
	}
	if !parsed.Valid {
		return nil, errs.New(errs.KindInvalidToken, "access token invalid")
	}
	if claims.Type != AccessTokenType {
		return nil, errs.New(errs.KindInvalidToken, "unexpected token type")
	}
	if claims.AppID == uuid.Nil {
		return nil, errs.New(errs.KindInvalidToken, "token missing app binding")
	}
	return claims, nil
}

// JWKS is the JSON Web Key Set document served at the discovery
// endpoint so downstream services can validate tokens without a
// round-trip to the platform.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is a single RSA public key in JWK format.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (p *JWTProvider) GetJWKS() JWKS {
	pub := p.privateKey.PublicKey
	eBytes := big64(pub.E)
	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: p.kid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(eBytes),
	}}}
}

func big64(e int) []byte {
	// Public exponent is almost always 65537 (0x010001); encode minimally.
	b := make([]byte, 0, 4)
	for e > 0 {
		b = append([]byte{byte(e & 0xff)}, b...)
		e >>= 8
	}
	if len(b) == 0 {
		b = []byte{0}
	}
	return b
}

// HashOpaqueToken hashes a refresh token for storage; SSO session tokens
// are stored as issued. Unlike passwords these are uniform-random and already
// high-entropy, so a fast digest is appropriate (mirrors credential's
// app-secret hashing rationale).
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateOpaqueToken returns n cryptographically random bytes,
// base64url-encoded.
func generateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
