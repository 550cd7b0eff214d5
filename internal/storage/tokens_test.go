package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/require"
)

func seedUserAndApp(t *testing.T, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	users := storage.NewUserRepo(pool)
	apps := storage.NewApplicationRepo(pool)

	u := newTestUser("token-" + uuid.NewString())
	require.NoError(t, users.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	a := &storage.Application{
		Name: "token-app", AppSecretHash: "hash", WebhookSecret: "whsec",
		Status: storage.ApplicationActive, RateLimit: 60,
		EnabledLoginMethods: map[string]bool{}, GrantedScopes: map[string]bool{},
		OAuthCredentials: map[string]storage.OAuthCredential{},
	}
	require.NoError(t, apps.Create(ctx, a))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM applications WHERE app_id = $1`, a.AppID) })

	return u.ID, a.AppID
}

func TestTokenRepo_CreateAndGetRefreshTokenByHash(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, appID := seedUserAndApp(t, pool)

	rt := &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: "hash-" + uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateRefreshToken(ctx, rt))

	got, err := repo.GetRefreshTokenByHash(ctx, rt.TokenHash)
	require.NoError(t, err)
	require.Equal(t, userID, got.UserID)
	require.False(t, got.Revoked)
}

func TestTokenRepo_RotateRefreshToken_RevokesOldAndInsertsNew(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, appID := seedUserAndApp(t, pool)

	oldHash := "old-" + uuid.NewString()
	require.NoError(t, repo.CreateRefreshToken(ctx, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: oldHash, ExpiresAt: time.Now().Add(time.Hour)}))

	newHash := "new-" + uuid.NewString()
	require.NoError(t, repo.RotateRefreshToken(ctx, oldHash, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: newHash, ExpiresAt: time.Now().Add(time.Hour)}))

	old, err := repo.GetRefreshTokenByHash(ctx, oldHash)
	require.NoError(t, err)
	require.True(t, old.Revoked)

	fresh, err := repo.GetRefreshTokenByHash(ctx, newHash)
	require.NoError(t, err)
	require.False(t, fresh.Revoked)
}

func TestTokenRepo_RotateRefreshToken_ReuseOfAlreadyRevokedTokenFails(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, appID := seedUserAndApp(t, pool)

	oldHash := "reuse-" + uuid.NewString()
	require.NoError(t, repo.CreateRefreshToken(ctx, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: oldHash, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.RotateRefreshToken(ctx, oldHash, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: "first-child-" + uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}))

	// Rotating the already-revoked hash again is the reuse-detection signal.
	err := repo.RotateRefreshToken(ctx, oldHash, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: "second-child-" + uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenRepo_RevokeAllForUser(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, appID := seedUserAndApp(t, pool)

	h1, h2 := "revoke-a-"+uuid.NewString(), "revoke-b-"+uuid.NewString()
	require.NoError(t, repo.CreateRefreshToken(ctx, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: h1, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.CreateRefreshToken(ctx, &storage.RefreshToken{UserID: userID, AppID: appID, TokenHash: h2, ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, repo.RevokeAllForUser(ctx, userID))

	for _, h := range []string{h1, h2} {
		got, err := repo.GetRefreshTokenByHash(ctx, h)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}
}

func TestTokenRepo_SSOSession_ValidateThenExpire(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, _ := seedUserAndApp(t, pool)

	token := "sso-" + uuid.NewString()
	require.NoError(t, repo.CreateSSOSession(ctx, &storage.SSOSession{UserID: userID, SessionToken: token, ExpiresAt: time.Now().Add(time.Hour)}))

	got, err := repo.ValidateSSOSession(ctx, token)
	require.NoError(t, err)
	require.Equal(t, userID, got)

	expired := "sso-expired-" + uuid.NewString()
	require.NoError(t, repo.CreateSSOSession(ctx, &storage.SSOSession{UserID: userID, SessionToken: expired, ExpiresAt: time.Now().Add(-time.Minute)}))

	_, err = repo.ValidateSSOSession(ctx, expired)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenRepo_DeleteAllSSOSessionsForUser(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewTokenRepo(pool)
	ctx := context.Background()
	userID, _ := seedUserAndApp(t, pool)

	token := "sso-delete-" + uuid.NewString()
	require.NoError(t, repo.CreateSSOSession(ctx, &storage.SSOSession{UserID: userID, SessionToken: token, ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, repo.DeleteAllSSOSessionsForUser(ctx, userID))

	_, err := repo.ValidateSSOSession(ctx, token)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
