// Package storage is the relational data-access layer over Postgres for
// every durable entity in the platform (§3). It is a thin, hand-written
// layer over pgx — there is no code generator in this tree, so each
// repository owns its own SQL and scan logic.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the identity state machine's state (§4.D).
type UserStatus string

const (
	UserStatusPendingVerification UserStatus = "pending_verification"
	UserStatusActive              UserStatus = "active"
	UserStatusLocked              UserStatus = "locked"
)

// User is a platform identity, potentially bound to many applications.
type User struct {
	ID                  uuid.UUID
	Username            string
	Email               *string
	Phone               *string
	PasswordHash        string
	Status              UserStatus
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordChanged     bool
	LastLoginAt         *time.Time
	CreatedAt           time.Time
}

// RefreshToken is an opaque, hashed, rotating credential (§4.B).
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	AppID     uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// SSOSession is an opaque cross-application session token.
type SSOSession struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SessionToken   string
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// Role aggregates permissions; system roles cannot be deleted.
type Role struct {
	ID           uuid.UUID
	Name         string
	Description  string
	IsSystemRole bool
}

// Permission is a single "resource:action" capability string.
type Permission struct {
	ID       uuid.UUID
	Name     string
	Resource string
	Action   string
}

// Organization is a materialized-path tree node.
type Organization struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Name     string
	Path     string
	Level    int
}

// SubscriptionPlan bounds an application's quota allowance.
type SubscriptionPlan struct {
	ID              uuid.UUID
	Name            string
	DurationDays    int
	PriceCents      int64
	RequestQuota    int64 // -1 = unlimited
	TokenQuota      int64 // -1 = unlimited
	QuotaPeriodDays int
	IsActive        bool
}

// UserSubscriptionStatus is the lifecycle state of a UserSubscription.
type UserSubscriptionStatus string

const (
	UserSubscriptionActive    UserSubscriptionStatus = "active"
	UserSubscriptionCancelled UserSubscriptionStatus = "cancelled"
	UserSubscriptionExpired   UserSubscriptionStatus = "expired"
)

// UserSubscription binds a user to a plan for a period.
type UserSubscription struct {
	UserID    uuid.UUID
	PlanID    uuid.UUID
	Status    UserSubscriptionStatus
	StartDate time.Time
	EndDate   time.Time
	AutoRenew bool
}

// ApplicationStatus gates whether an application may call the gateway.
type ApplicationStatus string

const (
	ApplicationActive   ApplicationStatus = "active"
	ApplicationDisabled ApplicationStatus = "disabled"
)

// OAuthCredential is one provider's client registration for an app.
type OAuthCredential struct {
	ClientID     string
	ClientSecret string
}

// Application is a third-party tenant of the platform (§3, §4.F).
type Application struct {
	AppID              uuid.UUID
	AppSecretHash      string
	WebhookSecret      string
	Name               string
	Status             ApplicationStatus
	RateLimit          int
	SubscriptionPlanID *uuid.UUID
	EnabledLoginMethods map[string]bool
	OAuthCredentials    map[string]OAuthCredential
	GrantedScopes       map[string]bool
	OrganizationIDs     []uuid.UUID
	CreatedAt           time.Time
}

// QuotaCounter is the mutable, per-app, per-cycle usage record (§3, §4.G).
type QuotaCounter struct {
	AppID               uuid.UUID
	CycleStart          time.Time
	CycleEnd            time.Time
	RequestUsed         int64
	TokenUsed           int64
	OverrideRequestLimit *int64
	OverrideTokenLimit   *int64
}

// QuotaResetType records whether a snapshot was taken by the scheduler
// or by an administrator.
type QuotaResetType string

const (
	QuotaResetAuto   QuotaResetType = "auto"
	QuotaResetManual QuotaResetType = "manual"
)

// QuotaSnapshot is an immutable historical record emitted at rollover.
type QuotaSnapshot struct {
	ID           uuid.UUID
	AppID        uuid.UUID
	CycleStart   time.Time
	CycleEnd     time.Time
	RequestLimit int64
	RequestUsed  int64
	TokenLimit   int64
	TokenUsed    int64
	ResetType    QuotaResetType
	CreatedAt    time.Time
}

// UserApplication binds a user to an application; created automatically
// on registration through that application's gateway (§4.F).
type UserApplication struct {
	UserID    uuid.UUID
	AppID     uuid.UUID
	CreatedAt time.Time
}

// AuditEntry is one append-only record of a mutating action or
// authentication outcome (§4.I).
type AuditEntry struct {
	ID           uuid.UUID
	UserID       *uuid.UUID
	Action       string
	ResourceType *string
	ResourceID   *string
	Details      map[string]interface{}
	IPAddress    *string
	UserAgent    *string
	CreatedAt    time.Time
}
