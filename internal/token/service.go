package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

// Pair is the triple returned by issuance and refresh operations.
type Pair struct {
	AccessToken     string
	RefreshToken    string
	SSOSessionToken string
	ExpiresIn       int // seconds, access-token TTL
}

// Service implements the token lifecycle operations of §4.B over a
// Provider (JWT signing) and a storage.TokenRepo (refresh/SSO
// persistence).
type Service struct {
	repo            *storage.TokenRepo
	provider        Provider
	accessTTL       time.Duration
	refreshTTL      time.Duration
	ssoTTL          time.Duration
	refreshByteLen  int
	sessionByteLen  int
}

func NewService(repo *storage.TokenRepo, provider Provider, accessTTL, refreshTTL, ssoTTL time.Duration) *Service {
	return &Service{
		repo:           repo,
		provider:       provider,
		accessTTL:      accessTTL,
		refreshTTL:     refreshTTL,
		ssoTTL:         ssoTTL,
		refreshByteLen: 32,
		sessionByteLen: 64,
	}
}

// IssuePair creates a fresh refresh-token row, a fresh SSO session row,
// and a signed access token, returning all three (§4.B issue_pair).
func (s *Service) IssuePair(ctx context.Context, userID, appID uuid.UUID) (*Pair, error) {
	access, err := s.provider.IssueAccess(userID, appID, s.accessTTL)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to issue access token", err)
	}

	rawRefresh, err := generateOpaqueToken(s.refreshByteLen)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to generate refresh token", err)
	}
	if err := s.repo.CreateRefreshToken(ctx, &storage.RefreshToken{
		UserID:    userID,
		AppID:     appID,
		TokenHash: HashOpaqueToken(rawRefresh),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to persist refresh token", err)
	}

	rawSession, err := generateOpaqueToken(s.sessionByteLen)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to generate sso session", err)
	}
	if err := s.repo.CreateSSOSession(ctx, &storage.SSOSession{
		UserID:       userID,
		SessionToken: rawSession,
		ExpiresAt:    time.Now().Add(s.ssoTTL),
	}); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to persist sso session", err)
	}

	return &Pair{
		AccessToken:     access,
		RefreshToken:    rawRefresh,
		SSOSessionToken: rawSession,
		ExpiresIn:       int(s.accessTTL.Seconds()),
	}, nil
}

// Refresh validates and rotates a refresh token (§4.B refresh,
// §8 invariant 3). On reuse of an already-consumed token, every
// sibling refresh token of the user is revoked as an anomaly response.
func (s *Service) Refresh(ctx context.Context, rawRefresh string, appID uuid.UUID) (*Pair, error) {
	hash := HashOpaqueToken(rawRefresh)

	existing, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindInvalidToken, "refresh token not recognized")
	}
	if existing.Revoked {
		// Reuse of a consumed token: nuke the whole family.
		_ = s.repo.RevokeAllForUser(ctx, existing.UserID)
		return nil, errs.New(errs.KindInvalidToken, "refresh token already used")
	}
	if time.Now().After(existing.ExpiresAt) {
		return nil, errs.New(errs.KindTokenExpired, "refresh token expired")
	}
	if existing.AppID != appID {
		return nil, errs.New(errs.KindInvalidToken, "refresh token bound to a different application")
	}

	access, err := s.provider.IssueAccess(existing.UserID, appID, s.accessTTL)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to issue access token", err)
	}

	rawNext, err := generateOpaqueToken(s.refreshByteLen)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to generate refresh token", err)
	}

	next := &storage.RefreshToken{
		UserID:    existing.UserID,
		AppID:     appID,
		TokenHash: HashOpaqueToken(rawNext),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.repo.RotateRefreshToken(ctx, hash, next); err != nil {
		if err == storage.ErrNotFound {
			// Lost the race: someone else rotated or reused it first.
			_ = s.repo.RevokeAllForUser(ctx, existing.UserID)
			return nil, errs.New(errs.KindInvalidToken, "refresh token already used")
		}
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to rotate refresh token", err)
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: rawNext,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// Logout revokes a single refresh token; idempotent (§4.B).
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	return s.repo.RevokeRefreshTokenByHash(ctx, HashOpaqueToken(rawRefresh))
}

// RevokeAllForUser bulk-revokes every refresh token for a user, called
// on password change and admin action.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.repo.RevokeAllForUser(ctx, userID)
}

// TerminateSSOSessions deletes every SSO session for a user. Per the
// Design Notes open question, this is invoked alongside
// RevokeAllForUser on first-login password change for consistency.
func (s *Service) TerminateSSOSessions(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteAllSSOSessionsForUser(ctx, userID)
}

// ValidateSSOSession resolves a session token to its owning user.
func (s *Service) ValidateSSOSession(ctx context.Context, token string) (uuid.UUID, error) {
	userID, err := s.repo.ValidateSSOSession(ctx, token)
	if err != nil {
		return uuid.Nil, errs.New(errs.KindInvalidToken, "sso session invalid or expired")
	}
	return userID, nil
}

func (s *Service) ValidateAccess(tokenString string) (*Claims, error) {
	return s.provider.ValidateAccess(tokenString)
}

func (s *Service) JWKS() JWKS {
	return s.provider.GetJWKS()
}
