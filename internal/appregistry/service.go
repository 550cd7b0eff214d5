// Package appregistry implements component F: application CRUD and
// secret rotation (§4.F). The OAuth provider registry lives in
// internal/oauthprovider.
package appregistry

import (
	"context"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/credential"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

// Service is the data-owning layer for Application records.
type Service struct {
	apps *storage.ApplicationRepo
}

func NewService(apps *storage.ApplicationRepo) *Service {
	return &Service{apps: apps}
}

// CreateResult carries the one-time plaintext secrets back to the
// caller; only hashes (app secret) or the plaintext itself (webhook
// secret, per §4.A) are ever persisted.
type CreateResult struct {
	App           *storage.Application
	AppSecret     string
	WebhookSecret string
}

func (s *Service) Create(ctx context.Context, name string, rateLimit int) (*CreateResult, error) {
	appSecret, err := credential.GenerateAppSecret()
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to generate app secret", err)
	}
	webhookSecret, err := credential.GenerateWebhookSecret()
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to generate webhook secret", err)
	}

	app := &storage.Application{
		AppID:               uuid.New(),
		AppSecretHash:       credential.HashSecret(appSecret),
		WebhookSecret:       webhookSecret,
		Name:                name,
		Status:              storage.ApplicationActive,
		RateLimit:           rateLimit,
		EnabledLoginMethods: map[string]bool{},
		OAuthCredentials:    map[string]storage.OAuthCredential{},
		GrantedScopes:       map[string]bool{},
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "failed to create application", err)
	}

	return &CreateResult{App: app, AppSecret: appSecret, WebhookSecret: webhookSecret}, nil
}

func (s *Service) GetByID(ctx context.Context, appID uuid.UUID) (*storage.Application, error) {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, errs.New(errs.KindInvalidCredentials, "application not found")
	}
	return app, nil
}

// Authenticate implements §4.H step 1 for app-credential endpoints:
// constant-time secret comparison, then the disabled-status check.
func (s *Service) Authenticate(ctx context.Context, appID uuid.UUID, presentedSecret string) (*storage.Application, error) {
	app, err := s.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if !credential.VerifyAppSecret(presentedSecret, app.AppSecretHash) {
		return nil, errs.New(errs.KindInvalidCredentials, "invalid application credentials")
	}
	if app.Status != storage.ApplicationActive {
		return nil, errs.New(errs.KindAppDisabled, "application is disabled")
	}
	return app, nil
}

func (s *Service) Update(ctx context.Context, appID uuid.UUID, u storage.ApplicationUpdate) error {
	if err := s.apps.Update(ctx, appID, u); err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to update application", err)
	}
	return nil
}

// ResetSecret regenerates the app secret and returns it once; the old
// hash is immediately overwritten and can never validate again.
func (s *Service) ResetSecret(ctx context.Context, appID uuid.UUID) (string, error) {
	newSecret, err := credential.GenerateAppSecret()
	if err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "failed to generate app secret", err)
	}
	if err := s.apps.ResetSecret(ctx, appID, credential.HashSecret(newSecret)); err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "failed to reset application secret", err)
	}
	return newSecret, nil
}

func (s *Service) Delete(ctx context.Context, appID uuid.UUID) error {
	return s.apps.Delete(ctx, appID)
}

// LoginMethodEnabled implements §4.H step 2.
func LoginMethodEnabled(app *storage.Application, method string) bool {
	return app.EnabledLoginMethods[method]
}

// ScopeGranted implements §4.H step 3.
func ScopeGranted(app *storage.Application, scope string) bool {
	return app.GrantedScopes[scope]
}
