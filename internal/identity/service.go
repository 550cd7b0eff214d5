package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/credential"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/lavente-care/iam-gateway/internal/token"
	"github.com/lavente-care/iam-gateway/internal/verification"
)

// AuditWriter is the narrow slice of component I this package needs,
// kept local to avoid a storage<->audit<->identity import cycle.
type AuditWriter interface {
	Write(ctx context.Context, userID *uuid.UUID, action string, details map[string]interface{})
}

// Config bounds the lockout policy (§4.D).
type Config struct {
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// Service orchestrates registration and login on top of the identity
// state machine, gluing the credential, verification, and token
// components together the way the gateway pipeline needs them (§4.H
// steps 1, 2, 6, 7).
type Service struct {
	users    *storage.UserRepo
	hasher   credential.PasswordHasher
	tokens   *token.Service
	codes    *verification.Store
	audit    AuditWriter
	cfg      Config
}

func NewService(users *storage.UserRepo, hasher credential.PasswordHasher, tokens *token.Service, codes *verification.Store, audit AuditWriter, cfg Config) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, codes: codes, audit: audit, cfg: cfg}
}

// RegisterWithEmailCode creates a user. The verification code is
// optional on this path (§6.1 `verification_code?`): supplying a valid
// one verifies the email up front and the user starts active; omitting
// it creates the user pending_verification, to be activated later via
// VerifyEmailRegistration (§3 lifecycle).
func (s *Service) RegisterWithEmailCode(ctx context.Context, appID uuid.UUID, email, username, password, code string) (*storage.User, error) {
	status := storage.UserStatusPendingVerification
	if code != "" {
		if err := s.codes.VerifyAndConsume(ctx, verification.TargetEmail, email, code); err != nil {
			return nil, withRegisterStatus(err)
		}
		status = storage.UserStatusActive
	}
	return s.createUser(ctx, appID, &email, nil, username, password, status)
}

// RegisterWithPhoneCode mirrors RegisterWithEmailCode for the phone
// channel. The phone registration's verification_code is mandatory
// (§6.1, no `?`), so this path always ends active.
func (s *Service) RegisterWithPhoneCode(ctx context.Context, appID uuid.UUID, phone, username, password, code string) (*storage.User, error) {
	if err := s.codes.VerifyAndConsume(ctx, verification.TargetPhone, phone, code); err != nil {
		return nil, withRegisterStatus(err)
	}
	return s.createUser(ctx, appID, nil, &phone, username, password, storage.UserStatusActive)
}

// withRegisterStatus overrides code_invalid_or_expired to 400 on the
// register path, where login's default 401 would be misleading (§7).
func withRegisterStatus(err error) error {
	if e, ok := errs.As(err); ok && e.Kind == errs.KindCodeInvalidOrExpired {
		return e.WithStatus(http.StatusBadRequest)
	}
	return err
}

// VerifyEmailRegistration transitions a pending_verification user to
// active once they present a valid code for the email they registered
// with (§3, §4.D: "email-link verified / code-registration succeeds").
func (s *Service) VerifyEmailRegistration(ctx context.Context, email, code string) (*storage.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "no user for identifier")
	}
	return s.verifyPendingRegistration(ctx, u, verification.TargetEmail, email, code)
}

// VerifyPhoneRegistration mirrors VerifyEmailRegistration for phone.
func (s *Service) VerifyPhoneRegistration(ctx context.Context, phone, code string) (*storage.User, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "no user for identifier")
	}
	return s.verifyPendingRegistration(ctx, u, verification.TargetPhone, phone, code)
}

func (s *Service) verifyPendingRegistration(ctx context.Context, u *storage.User, targetType verification.TargetType, target, code string) (*storage.User, error) {
	if u.Status != storage.UserStatusPendingVerification {
		return u, nil
	}
	if err := s.codes.VerifyAndConsume(ctx, targetType, target, code); err != nil {
		return nil, err
	}
	if err := s.users.UpdateStatus(ctx, u.ID, storage.UserStatusActive); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to activate user", err)
	}
	u.Status = storage.UserStatusActive
	s.audit.Write(ctx, &u.ID, "user.register.verified", map[string]interface{}{"method": string(targetType)})
	return u, nil
}

func (s *Service) createUser(ctx context.Context, appID uuid.UUID, email, phone *string, username, password string, status storage.UserStatus) (*storage.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	if email != nil {
		if _, err := s.users.GetByEmail(ctx, *email); err == nil {
			return nil, errs.New(errs.KindConflictEmail, "email already registered")
		}
	}
	if phone != nil {
		if _, err := s.users.GetByPhone(ctx, *phone); err == nil {
			return nil, errs.New(errs.KindConflictPhone, "phone already registered")
		}
	}
	if username != "" {
		if _, err := s.users.GetByUsername(ctx, username); err == nil {
			return nil, errs.New(errs.KindConflictUsername, "username already taken")
		}
	}

	u := &storage.User{
		ID:              uuid.New(),
		Username:        username,
		Email:           email,
		Phone:           phone,
		PasswordHash:    hash,
		Status:          status,
		PasswordChanged: true,
		CreatedAt:       time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to create user", err)
	}
	if err := s.users.BindToApplication(ctx, u.ID, appID); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to bind user to application", err)
	}

	s.audit.Write(ctx, &u.ID, "user.register", map[string]interface{}{"app_id": appID, "method": registrationMethod(email, phone), "status": u.Status})
	return u, nil
}

func registrationMethod(email, phone *string) string {
	if email != nil {
		return "email"
	}
	if phone != nil {
		return "phone"
	}
	return "unknown"
}

// LoginResult bundles the outcome of a successful password login.
type LoginResult struct {
	User                   *storage.User
	Tokens                 *token.Pair
	RequiresPasswordChange bool
}

// LoginWithPassword implements §4.D's password-login transition table:
// wrong password increments the failure counter and may lock the
// account; correct password inside a lockout window is rejected
// outright; correct password otherwise resets the counter and issues a
// token pair.
func (s *Service) LoginWithPassword(ctx context.Context, appID uuid.UUID, identifier, password string) (*LoginResult, error) {
	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "no user for identifier")
	}

	if u.Status == storage.UserStatusLocked {
		if u.LockedUntil != nil && time.Now().Before(*u.LockedUntil) {
			s.audit.Write(ctx, &u.ID, "user.login.denied_locked", nil)
			return nil, errs.New(errs.KindAccountLocked, "account is locked")
		}
		if err := s.users.UnlockIfExpired(ctx, u.ID); err != nil {
			return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to unlock account", err)
		}
		u.Status = storage.UserStatusActive
		u.FailedLoginAttempts = 0
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		attempts, locked, recErr := s.users.RecordFailedLogin(ctx, u.ID, s.cfg.LockoutThreshold, s.cfg.LockoutWindow)
		if recErr != nil {
			return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to record login failure", recErr)
		}
		s.audit.Write(ctx, &u.ID, "user.login.failed", map[string]interface{}{"attempts": attempts, "locked": locked})
		return nil, errs.New(errs.KindInvalidCredentials, "invalid credentials")
	}

	if err := s.users.RecordSuccessfulLogin(ctx, u.ID); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to record login", err)
	}

	if err := s.users.BindToApplication(ctx, u.ID, appID); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to bind user to application", err)
	}

	pair, err := s.tokens.IssuePair(ctx, u.ID, appID)
	if err != nil {
		return nil, err
	}

	s.audit.Write(ctx, &u.ID, "user.login.success", map[string]interface{}{"app_id": appID})

	return &LoginResult{User: u, Tokens: pair, RequiresPasswordChange: !u.PasswordChanged}, nil
}

// LoginWithEmailCode and LoginWithPhoneCode require status == active
// (§4.D) and skip the failed-attempt counter entirely — a verification
// code cannot be guessed within its 60-second resend window the way a
// password can be retried.
func (s *Service) LoginWithEmailCode(ctx context.Context, appID uuid.UUID, email, code string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "no user for identifier")
	}
	return s.loginWithCode(ctx, appID, u, verification.TargetEmail, email, code)
}

func (s *Service) LoginWithPhoneCode(ctx context.Context, appID uuid.UUID, phone, code string) (*LoginResult, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "no user for identifier")
	}
	return s.loginWithCode(ctx, appID, u, verification.TargetPhone, phone, code)
}

func (s *Service) loginWithCode(ctx context.Context, appID uuid.UUID, u *storage.User, targetType verification.TargetType, target, code string) (*LoginResult, error) {
	if err := CheckCodeLoginEligible(u); err != nil {
		return nil, err
	}
	if err := s.codes.VerifyAndConsume(ctx, targetType, target, code); err != nil {
		return nil, err
	}
	if err := s.users.RecordSuccessfulLogin(ctx, u.ID); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to record login", err)
	}
	if err := s.users.BindToApplication(ctx, u.ID, appID); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to bind user to application", err)
	}
	pair, err := s.tokens.IssuePair(ctx, u.ID, appID)
	if err != nil {
		return nil, err
	}
	s.audit.Write(ctx, &u.ID, "user.login.success", map[string]interface{}{"app_id": appID, "method": string(targetType) + "_code"})
	return &LoginResult{User: u, Tokens: pair, RequiresPasswordChange: !u.PasswordChanged}, nil
}

// ChangePassword validates the current password, applies the strength
// policy to the new one, and revokes every outstanding refresh token
// and SSO session to force re-login everywhere (§4.D, §9 open question).
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errs.New(errs.KindUserNotFound, "user not found")
	}
	if err := s.hasher.Compare(u.PasswordHash, oldPassword); err != nil {
		return errs.New(errs.KindInvalidCredentials, "current password does not match")
	}
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, newHash, true); err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to update password", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to revoke refresh tokens", err)
	}
	if err := s.tokens.TerminateSSOSessions(ctx, userID); err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to terminate sso sessions", err)
	}
	s.audit.Write(ctx, &userID, "user.password_change", nil)
	return nil
}

// LoginWithOAuthProfile finds or creates a user by the email an OAuth
// provider vouches for, then issues a session exactly like a successful
// password login. A newly created OAuth user gets a random local password
// that is never returned to anyone, and is marked as never needing
// PasswordChanged, since they authenticate upstream.
func (s *Service) LoginWithOAuthProfile(ctx context.Context, appID uuid.UUID, email, displayName string) (*LoginResult, bool, error) {
	isNewUser := false
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		randomHash, hashErr := s.hasher.Hash(uuid.New().String())
		if hashErr != nil {
			return nil, false, hashErr
		}
		username := displayName
		if username == "" {
			username = email
		}
		u = &storage.User{
			ID:              uuid.New(),
			Username:        username,
			Email:           &email,
			PasswordHash:    randomHash,
			Status:          storage.UserStatusActive,
			PasswordChanged: true,
			CreatedAt:       time.Now(),
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, false, errs.Wrap(errs.KindServiceUnavailable, "failed to create oauth user", err)
		}
		isNewUser = true
		s.audit.Write(ctx, &u.ID, "user.register", map[string]interface{}{"app_id": appID, "method": "oauth"})
	}

	if err := CheckLoginEligible(u); err != nil {
		return nil, false, err
	}

	if err := s.users.RecordSuccessfulLogin(ctx, u.ID); err != nil {
		return nil, false, errs.Wrap(errs.KindServiceUnavailable, "failed to record login", err)
	}
	if err := s.users.BindToApplication(ctx, u.ID, appID); err != nil {
		return nil, false, errs.Wrap(errs.KindServiceUnavailable, "failed to bind user to application", err)
	}
	pair, err := s.tokens.IssuePair(ctx, u.ID, appID)
	if err != nil {
		return nil, false, err
	}
	s.audit.Write(ctx, &u.ID, "user.login.success", map[string]interface{}{"app_id": appID, "method": "oauth"})
	return &LoginResult{User: u, Tokens: pair, RequiresPasswordChange: false}, isNewUser, nil
}

// GetByID looks up a profile by id. user_not_found renders 404 here,
// unlike the 401 it renders on the login path (§7).
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errs.New(errs.KindUserNotFound, "user not found").WithStatus(http.StatusNotFound)
	}
	return u, nil
}

func (s *Service) IsBoundToApplication(ctx context.Context, userID, appID uuid.UUID) (bool, error) {
	return s.users.IsBoundToApplication(ctx, userID, appID)
}
