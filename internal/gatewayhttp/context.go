// Package gatewayhttp implements component H: the gateway admission
// pipeline's HTTP surface (§4.H, §6).
package gatewayhttp

import (
	"context"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

type contextKey int

const (
	appIDKey contextKey = iota
	applicationKey
	userIDKey
	requestIDKey
	requiredScopeKey
)

func WithAppID(ctx context.Context, appID uuid.UUID) context.Context {
	return context.WithValue(ctx, appIDKey, appID)
}

// AppID returns the authenticated application's id, or uuid.Nil if none
// was set (pre-auth middleware stage).
func AppID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(appIDKey).(uuid.UUID)
	return id
}

func WithApplication(ctx context.Context, app *storage.Application) context.Context {
	return context.WithValue(ctx, applicationKey, app)
}

// Application returns the authenticated application row, or nil before
// the app-auth middleware stage runs.
func Application(ctx context.Context) *storage.Application {
	app, _ := ctx.Value(applicationKey).(*storage.Application)
	return app
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithRequiredScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, requiredScopeKey, scope)
}

func RequiredScope(ctx context.Context) string {
	scope, _ := ctx.Value(requiredScopeKey).(string)
	return scope
}
