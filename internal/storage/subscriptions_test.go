package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepo_CreatePlanAndGetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewSubscriptionRepo(pool)
	ctx := context.Background()

	plan := &storage.SubscriptionPlan{
		Name: "plan-" + uuid.NewString(), DurationDays: 30, PriceCents: 1999,
		RequestQuota: 10000, TokenQuota: 500000, QuotaPeriodDays: 30, IsActive: true,
	}
	require.NoError(t, repo.CreatePlan(ctx, plan))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM subscription_plans WHERE id = $1`, plan.ID) })

	got, err := repo.GetPlanByID(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, plan.Name, got.Name)
	require.Equal(t, int64(10000), got.RequestQuota)
}

func TestSubscriptionRepo_GetPlanByID_UnknownReturnsErrNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewSubscriptionRepo(pool)

	_, err := repo.GetPlanByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubscriptionRepo_CreateUserSubscriptionAndGetActive(t *testing.T) {
	if testing.Short() {
		t.Skip("requires local postgres")
	}
	pool := testPool(t)
	defer pool.Close()
	repo := storage.NewSubscriptionRepo(pool)
	users := storage.NewUserRepo(pool)
	ctx := context.Background()

	u := newTestUser("subscriber-" + uuid.NewString())
	require.NoError(t, users.Create(ctx, u))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID) })

	plan := &storage.SubscriptionPlan{
		Name: "sub-plan-" + uuid.NewString(), DurationDays: 30, PriceCents: 0,
		RequestQuota: -1, TokenQuota: -1, QuotaPeriodDays: 30, IsActive: true,
	}
	require.NoError(t, repo.CreatePlan(ctx, plan))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM subscription_plans WHERE id = $1`, plan.ID) })

	sub := &storage.UserSubscription{
		UserID: u.ID, PlanID: plan.ID, Status: storage.UserSubscriptionActive,
		StartDate: time.Now(), EndDate: time.Now().Add(30 * 24 * time.Hour), AutoRenew: true,
	}
	require.NoError(t, repo.CreateUserSubscription(ctx, sub))

	got, err := repo.GetActiveForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, plan.ID, got.PlanID)
	require.True(t, got.AutoRenew)
}
