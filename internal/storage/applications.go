package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationRepo is the data-access layer over applications (§4.F).
type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

func encodeStringSet(set map[string]bool) []byte {
	keys := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			keys = append(keys, k)
		}
	}
	b, _ := json.Marshal(keys)
	return b
}

func decodeStringSet(b []byte) map[string]bool {
	var keys []string
	_ = json.Unmarshal(b, &keys)
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	var loginMethods, scopes, oauthCreds []byte
	var orgIDs []uuid.UUID
	err := row.Scan(&a.AppID, &a.AppSecretHash, &a.WebhookSecret, &a.Name, &a.Status, &a.RateLimit,
		&a.SubscriptionPlanID, &loginMethods, &oauthCreds, &scopes, &orgIDs, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.EnabledLoginMethods = decodeStringSet(loginMethods)
	a.GrantedScopes = decodeStringSet(scopes)
	a.OrganizationIDs = orgIDs
	a.OAuthCredentials = map[string]OAuthCredential{}
	_ = json.Unmarshal(oauthCreds, &a.OAuthCredentials)
	return &a, nil
}

const applicationColumns = `app_id, app_secret_hash, webhook_secret, name, status, rate_limit, subscription_plan_id, enabled_login_methods, oauth_credentials, granted_scopes, organization_ids, created_at`

func (r *ApplicationRepo) Create(ctx context.Context, a *Application) error {
	if a.AppID == uuid.Nil {
		a.AppID = uuid.New()
	}
	oauthCreds, _ := json.Marshal(a.OAuthCredentials)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())`,
		a.AppID, a.AppSecretHash, a.WebhookSecret, a.Name, a.Status, a.RateLimit,
		a.SubscriptionPlanID, encodeStringSet(a.EnabledLoginMethods), oauthCreds,
		encodeStringSet(a.GrantedScopes), a.OrganizationIDs)
	return err
}

func (r *ApplicationRepo) GetByID(ctx context.Context, appID uuid.UUID) (*Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE app_id = $1`, appID)
	return scanApplication(row)
}

// ApplicationUpdate is a coherent group of field changes that Update
// writes in a single UPDATE statement (§4.F: "atomic per field or per
// coherent group"). Nil pointers mean "leave unchanged".
type ApplicationUpdate struct {
	Name                *string
	Status              *ApplicationStatus
	RateLimit           *int
	EnabledLoginMethods map[string]bool
	OAuthCredentials    map[string]OAuthCredential
	GrantedScopes       map[string]bool
	SubscriptionPlanID  *uuid.UUID
	OrganizationIDs     []uuid.UUID
}

func (r *ApplicationRepo) Update(ctx context.Context, appID uuid.UUID, u ApplicationUpdate) error {
	current, err := r.GetByID(ctx, appID)
	if err != nil {
		return err
	}
	if u.Name != nil {
		current.Name = *u.Name
	}
	if u.Status != nil {
		current.Status = *u.Status
	}
	if u.RateLimit != nil {
		current.RateLimit = *u.RateLimit
	}
	if u.EnabledLoginMethods != nil {
		current.EnabledLoginMethods = u.EnabledLoginMethods
	}
	if u.OAuthCredentials != nil {
		current.OAuthCredentials = u.OAuthCredentials
	}
	if u.GrantedScopes != nil {
		current.GrantedScopes = u.GrantedScopes
	}
	if u.SubscriptionPlanID != nil {
		current.SubscriptionPlanID = u.SubscriptionPlanID
	}
	if u.OrganizationIDs != nil {
		current.OrganizationIDs = u.OrganizationIDs
	}

	oauthCreds, _ := json.Marshal(current.OAuthCredentials)
	_, err = r.pool.Exec(ctx, `
		UPDATE applications SET
			name = $2, status = $3, rate_limit = $4, subscription_plan_id = $5,
			enabled_login_methods = $6, oauth_credentials = $7, granted_scopes = $8, organization_ids = $9
		WHERE app_id = $1`,
		appID, current.Name, current.Status, current.RateLimit, current.SubscriptionPlanID,
		encodeStringSet(current.EnabledLoginMethods), oauthCreds, encodeStringSet(current.GrantedScopes), current.OrganizationIDs)
	return err
}

func (r *ApplicationRepo) ResetSecret(ctx context.Context, appID uuid.UUID, newHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE applications SET app_secret_hash = $2 WHERE app_id = $1`, appID, newHash)
	return err
}

// Delete cascades application-owned rows (quota snapshots, refresh
// tokens, user-application bindings) via foreign keys declared ON DELETE
// CASCADE in the schema; user accounts themselves are untouched (§4.F).
// The Redis quota counter is not removed.
func (r *ApplicationRepo) Delete(ctx context.Context, appID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE app_id = $1`, appID)
	return err
}
