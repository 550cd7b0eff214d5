package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepo persists refresh tokens and SSO sessions (§4.B).
type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

func (r *TokenRepo) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, app_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1,$2,$3,$4,$5,false,now())`,
		t.ID, t.UserID, t.AppID, t.TokenHash, t.ExpiresAt)
	return err
}

func (r *TokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, app_id, token_hash, expires_at, revoked, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash).
		Scan(&t.ID, &t.UserID, &t.AppID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// RotateRefreshToken atomically revokes the old token and inserts its
// replacement in one transaction, implementing refresh-token rotation
// (§4.B invariant 3). It returns ErrNotFound if the old token was
// already revoked by the time the transaction committed (a concurrent
// rotation or a reuse attempt), so the caller can treat that as the
// reuse-detection signal.
func (r *TokenRepo) RotateRefreshToken(ctx context.Context, oldHash string, next *RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE token_hash = $1 AND revoked = false`, oldHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, app_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1,$2,$3,$4,$5,false,now())`,
		next.ID, next.UserID, next.AppID, next.TokenHash, next.ExpiresAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *TokenRepo) RevokeRefreshTokenByHash(ctx context.Context, hash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE token_hash = $1 AND revoked = false`, hash)
	return err
}

// RevokeAllForUser revokes every outstanding refresh token for a user.
// Used on password change, admin action, and detected token reuse.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true, revoked_at = now() WHERE user_id = $1 AND revoked = false`, userID)
	return err
}

func (r *TokenRepo) CreateSSOSession(ctx context.Context, s *SSOSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sso_sessions (id, user_id, session_token, expires_at, last_activity_at)
		VALUES ($1,$2,$3,$4,now())`,
		s.ID, s.UserID, s.SessionToken, s.ExpiresAt)
	return err
}

// ValidateSSOSession resolves a session token to its owning user,
// opportunistically deleting the row if it has expired.
func (r *TokenRepo) ValidateSSOSession(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT user_id, expires_at FROM sso_sessions WHERE session_token = $1`, token).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	if time.Now().After(expiresAt) {
		_, _ = r.pool.Exec(ctx, `DELETE FROM sso_sessions WHERE session_token = $1`, token)
		return uuid.Nil, ErrNotFound
	}
	_, _ = r.pool.Exec(ctx, `UPDATE sso_sessions SET last_activity_at = now() WHERE session_token = $1`, token)
	return userID, nil
}

func (r *TokenRepo) DeleteAllSSOSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sso_sessions WHERE user_id = $1`, userID)
	return err
}
