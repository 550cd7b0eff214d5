package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by repository lookups that find no row. The
// service layer maps it to errs.KindUserNotFound or equivalent.
var ErrNotFound = errors.New("storage: not found")

// UserRepo is the data-access layer over the users table.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, username, email, phone, password_hash, status, failed_login_attempts, locked_until, password_changed, last_login_at, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Status,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.PasswordChanged, &u.LastLoginAt, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, phone, password_hash, status, failed_login_attempts, locked_until, password_changed, last_login_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.Username, u.Email, u.Phone, u.PasswordHash, u.Status,
		u.FailedLoginAttempts, u.LockedUntil, u.PasswordChanged, u.LastLoginAt, u.CreatedAt)
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetByIdentifier resolves a login identifier that may be a username,
// email, or phone number.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 OR phone = $1`, identifier)
	return scanUser(row)
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, passwordChanged bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, password_changed = $3 WHERE id = $1`, id, hash, passwordChanged)
	return err
}

// RecordFailedLogin increments the failed-attempt counter and, when it
// reaches threshold, transitions the user to locked with a lockout
// window (§4.D). Returns the resulting attempt count and whether the
// account is now locked.
func (r *UserRepo) RecordFailedLogin(ctx context.Context, id uuid.UUID, threshold int, window time.Duration) (attempts int, locked bool, err error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			status = CASE WHEN failed_login_attempts + 1 >= $2 THEN 'locked' ELSE status END,
			locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END
		WHERE id = $1
		RETURNING failed_login_attempts, status = 'locked'`,
		id, threshold, time.Now().Add(window))
	err = row.Scan(&attempts, &locked)
	return
}

// RecordSuccessfulLogin resets the failure counter, clears lockout
// state, and stamps last_login_at.
func (r *UserRepo) RecordSuccessfulLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET
			failed_login_attempts = 0,
			status = 'active',
			locked_until = NULL,
			last_login_at = now()
		WHERE id = $1`, id)
	return err
}

// UnlockIfExpired transitions a locked user back to active when the
// lockout window has elapsed, resetting the failure counter.
func (r *UserRepo) UnlockIfExpired(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET status = 'active', failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1 AND status = 'locked' AND locked_until <= now()`, id)
	return err
}

func (r *UserRepo) BindToApplication(ctx context.Context, userID, appID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_applications (user_id, app_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, app_id) DO NOTHING`, userID, appID)
	return err
}

func (r *UserRepo) IsBoundToApplication(ctx context.Context, userID, appID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_applications WHERE user_id = $1 AND app_id = $2)`, userID, appID).Scan(&exists)
	return exists, err
}
