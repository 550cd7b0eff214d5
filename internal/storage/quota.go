package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaSnapshotRepo persists the immutable history of quota cycles.
// The hot-path counters themselves live in Redis (internal/quota) for
// atomic reserve/commit; this repo only ever appends.
type QuotaSnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaSnapshotRepo(pool *pgxpool.Pool) *QuotaSnapshotRepo {
	return &QuotaSnapshotRepo{pool: pool}
}

func (r *QuotaSnapshotRepo) Create(ctx context.Context, s *QuotaSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quota_snapshots (id, app_id, cycle_start, cycle_end, request_limit, request_used, token_limit, token_used, reset_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())`,
		s.ID, s.AppID, s.CycleStart, s.CycleEnd, s.RequestLimit, s.RequestUsed, s.TokenLimit, s.TokenUsed, s.ResetType)
	return err
}

// LatestForApp returns the most recent snapshot for an app, used to
// start a reopened counter's cycle at the previous cycle_end (§8
// invariant 13).
func (r *QuotaSnapshotRepo) LatestForApp(ctx context.Context, appID uuid.UUID) (*QuotaSnapshot, error) {
	var s QuotaSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT id, app_id, cycle_start, cycle_end, request_limit, request_used, token_limit, token_used, reset_type, created_at
		FROM quota_snapshots WHERE app_id = $1 ORDER BY cycle_end DESC LIMIT 1`, appID).
		Scan(&s.ID, &s.AppID, &s.CycleStart, &s.CycleEnd, &s.RequestLimit, &s.RequestUsed, &s.TokenLimit, &s.TokenUsed, &s.ResetType, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
