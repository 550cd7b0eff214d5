package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepo is the data-access layer over subscription plans and
// the user-subscriptions that bind users to them (§3).
type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) GetPlanByID(ctx context.Context, id uuid.UUID) (*SubscriptionPlan, error) {
	var p SubscriptionPlan
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_days, price_cents, request_quota, token_quota, quota_period_days, is_active
		FROM subscription_plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.DurationDays, &p.PriceCents, &p.RequestQuota, &p.TokenQuota, &p.QuotaPeriodDays, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *SubscriptionRepo) CreatePlan(ctx context.Context, p *SubscriptionPlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscription_plans (id, name, duration_days, price_cents, request_quota, token_quota, quota_period_days, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.DurationDays, p.PriceCents, p.RequestQuota, p.TokenQuota, p.QuotaPeriodDays, p.IsActive)
	return err
}

func (r *SubscriptionRepo) CreateUserSubscription(ctx context.Context, s *UserSubscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_subscriptions (user_id, plan_id, status, start_date, end_date, auto_renew)
		VALUES ($1,$2,$3,$4,$5,$6)`, s.UserID, s.PlanID, s.Status, s.StartDate, s.EndDate, s.AutoRenew)
	return err
}

func (r *SubscriptionRepo) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*UserSubscription, error) {
	var s UserSubscription
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, plan_id, status, start_date, end_date, auto_renew
		FROM user_subscriptions WHERE user_id = $1 AND status = 'active'
		ORDER BY start_date DESC LIMIT 1`, userID).
		Scan(&s.UserID, &s.PlanID, &s.Status, &s.StartDate, &s.EndDate, &s.AutoRenew)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
