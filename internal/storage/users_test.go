package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestUser(username string) *storage.User {
	return &storage.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "hash",
		Status:       storage.UserStatusActive,
		CreatedAt:    time.Now(),
	}
}

func TestUserRepo_CreateAndLookups(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewUserRepo(pool)
	ctx := context.Background()

	email := "lookup-" + uuid.NewString() + "@example.com"
	phone := "+1555" + uuid.NewString()[:7]
	u := newTestUser("lookup-" + uuid.NewString())
	u.Email = &email
	u.Phone = &phone
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, byID.Username)

	byEmail, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byPhone, err := repo.GetByPhone(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, u.ID, byPhone.ID)

	byIdentifier, err := repo.GetByIdentifier(ctx, u.Username)
	require.NoError(t, err)
	require.Equal(t, u.ID, byIdentifier.ID)
}

func TestUserRepo_GetByID_UnknownReturnsErrNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewUserRepo(pool)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserRepo_RecordFailedLogin_LocksAtThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewUserRepo(pool)
	ctx := context.Background()

	u := newTestUser("failcount-" + uuid.NewString())
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	attempts, locked, err := repo.RecordFailedLogin(ctx, u.ID, 3, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	require.False(t, locked)

	attempts, locked, err = repo.RecordFailedLogin(ctx, u.ID, 3, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.False(t, locked)

	attempts, locked, err = repo.RecordFailedLogin(ctx, u.ID, 3, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.True(t, locked)

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, storage.UserStatusLocked, got.Status)
	require.NotNil(t, got.LockedUntil)
}

func TestUserRepo_RecordSuccessfulLogin_ResetsFailureState(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewUserRepo(pool)
	ctx := context.Background()

	u := newTestUser("success-" + uuid.NewString())
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	_, _, err := repo.RecordFailedLogin(ctx, u.ID, 5, time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.RecordSuccessfulLogin(ctx, u.ID))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.FailedLoginAttempts)
	require.Equal(t, storage.UserStatusActive, got.Status)
	require.Nil(t, got.LockedUntil)
	require.NotNil(t, got.LastLoginAt)
}

func TestUserRepo_UnlockIfExpired_OnlyUnlocksPastWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewUserRepo(pool)
	ctx := context.Background()

	u := newTestUser("unlock-" + uuid.NewString())
	require.NoError(t, repo.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	_, _, err := repo.RecordFailedLogin(ctx, u.ID, 1, -time.Minute) // window already elapsed
	require.NoError(t, err)

	require.NoError(t, repo.UnlockIfExpired(ctx, u.ID))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, storage.UserStatusActive, got.Status)
	require.Equal(t, 0, got.FailedLoginAttempts)
}

func TestUserRepo_BindToApplication_IsIdempotentAndQueryable(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	users := storage.NewUserRepo(pool)
	apps := storage.NewApplicationRepo(pool)
	ctx := context.Background()

	u := newTestUser("bind-" + uuid.NewString())
	require.NoError(t, users.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	a := &storage.Application{
		Name: "bind-app", AppSecretHash: "hash", WebhookSecret: "whsec",
		Status: storage.ApplicationActive, RateLimit: 60,
		EnabledLoginMethods: map[string]bool{}, GrantedScopes: map[string]bool{},
		OAuthCredentials: map[string]storage.OAuthCredential{},
	}
	require.NoError(t, apps.Create(ctx, a))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM applications WHERE app_id = $1`, a.AppID) })

	bound, err := users.IsBoundToApplication(ctx, u.ID, a.AppID)
	require.NoError(t, err)
	require.False(t, bound)

	require.NoError(t, users.BindToApplication(ctx, u.ID, a.AppID))
	require.NoError(t, users.BindToApplication(ctx, u.ID, a.AppID)) // second call must not error

	bound, err = users.IsBoundToApplication(ctx, u.ID, a.AppID)
	require.NoError(t, err)
	require.True(t, bound)
}
