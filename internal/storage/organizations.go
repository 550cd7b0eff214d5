package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrganizationRepo is the data-access layer over the organization tree
// (§3: materialized path, level bound 0..10).
type OrganizationRepo struct {
	pool *pgxpool.Pool
}

func NewOrganizationRepo(pool *pgxpool.Pool) *OrganizationRepo {
	return &OrganizationRepo{pool: pool}
}

// Create computes path/level from the parent, enforcing the invariant
// level = parent.level + 1 and extending the parent's path so cycles are
// structurally impossible.
func (r *OrganizationRepo) Create(ctx context.Context, o *Organization) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.ParentID == nil {
		o.Level = 0
		o.Path = o.ID.String()
	} else {
		parent, err := r.GetByID(ctx, *o.ParentID)
		if err != nil {
			return err
		}
		if parent.Level >= 10 {
			return errors.New("storage: organization tree depth exceeds 10")
		}
		o.Level = parent.Level + 1
		o.Path = fmt.Sprintf("%s/%s", parent.Path, o.ID)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizations (id, parent_id, name, path, level)
		VALUES ($1,$2,$3,$4,$5)`, o.ID, o.ParentID, o.Name, o.Path, o.Level)
	return err
}

func (r *OrganizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var o Organization
	err := r.pool.QueryRow(ctx, `SELECT id, parent_id, name, path, level FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.ParentID, &o.Name, &o.Path, &o.Level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrganizationRepo) AddUser(ctx context.Context, userID, orgID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_organizations (user_id, org_id) VALUES ($1,$2)
		ON CONFLICT (user_id, org_id) DO NOTHING`, userID, orgID)
	return err
}

func (r *OrganizationRepo) RemoveUser(ctx context.Context, userID, orgID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_organizations WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return err
}
