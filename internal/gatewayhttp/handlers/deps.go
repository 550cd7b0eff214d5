// Package handlers implements the gateway's HTTP endpoints (§6.1),
// grounded on the teacher's internal/api/handlers.go decode-validate-
// call-respond idiom.
package handlers

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavente-care/iam-gateway/internal/appregistry"
	"github.com/lavente-care/iam-gateway/internal/authz"
	"github.com/lavente-care/iam-gateway/internal/identity"
	"github.com/lavente-care/iam-gateway/internal/oauthprovider"
	"github.com/lavente-care/iam-gateway/internal/quota"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/lavente-care/iam-gateway/internal/token"
	"github.com/lavente-care/iam-gateway/internal/verification"
	"github.com/redis/go-redis/v9"
)

// Handlers bundles every component the HTTP layer calls into.
type Handlers struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Identity *identity.Service
	Tokens   *token.Service
	Authz    *authz.Engine
	Apps     *appregistry.Service
	Quota    *quota.Accounter
	Codes    *verification.Store
	OAuth    *oauthprovider.Registry
	Roles    *storage.RoleRepo
	Orgs     *storage.OrganizationRepo
	Log      *slog.Logger
	Version  string
}

func New(deps Handlers) *Handlers {
	h := deps
	return &h
}
