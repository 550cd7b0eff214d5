package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

func storageApplicationUpdate(req updateApplicationRequest) storage.ApplicationUpdate {
	return storage.ApplicationUpdate{
		Name:                req.Name,
		RateLimit:           req.RateLimit,
		EnabledLoginMethods: req.EnabledLoginMethods,
		GrantedScopes:       req.GrantedScopes,
		SubscriptionPlanID:  req.SubscriptionPlanID,
	}
}

type quotaOverrideRequest struct {
	RequestLimit *int64 `json:"request_limit,omitempty"`
	TokenLimit   *int64 `json:"token_limit,omitempty"`
}

// AdminQuotaOverride implements `POST /admin/quota/{app}/override`
// (scenario S4: admin-adjustable quota limits).
func (h *Handlers) AdminQuotaOverride(w http.ResponseWriter, r *http.Request) {
	appID, planID, err := h.resolveAppAndPlan(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	var req quotaOverrideRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	if err := h.Quota.Override(r.Context(), appID, planID, req.RequestLimit, req.TokenLimit); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

// AdminQuotaReset implements `POST /admin/quota/{app}/reset` (scenario S4).
func (h *Handlers) AdminQuotaReset(w http.ResponseWriter, r *http.Request) {
	appID, planID, err := h.resolveAppAndPlan(r)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	if err := h.Quota.Reset(r.Context(), appID, planID); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

type createApplicationRequest struct {
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
}

// CreateApplication implements `POST /admin/applications` (§4.F create).
func (h *Handlers) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 60
	}
	result, err := h.Apps.Create(r.Context(), req.Name, req.RateLimit)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusCreated, map[string]interface{}{
		"app_id":         result.App.AppID,
		"app_secret":     result.AppSecret,
		"webhook_secret": result.WebhookSecret,
		"name":           result.App.Name,
	})
}

// GetApplication implements `GET /admin/applications/{app}`.
func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(chi.URLParam(r, "app"))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid application id"))
		return
	}
	app, err := h.Apps.GetByID(r.Context(), appID)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"app_id":                app.AppID,
		"name":                  app.Name,
		"status":                app.Status,
		"rate_limit":            app.RateLimit,
		"subscription_plan_id":  app.SubscriptionPlanID,
		"enabled_login_methods": app.EnabledLoginMethods,
		"granted_scopes":        app.GrantedScopes,
		"organization_ids":      app.OrganizationIDs,
		"created_at":            app.CreatedAt,
	})
}

type updateApplicationRequest struct {
	Name                *string          `json:"name,omitempty"`
	RateLimit           *int             `json:"rate_limit,omitempty"`
	EnabledLoginMethods map[string]bool  `json:"enabled_login_methods,omitempty"`
	GrantedScopes       map[string]bool  `json:"granted_scopes,omitempty"`
	SubscriptionPlanID  *uuid.UUID       `json:"subscription_plan_id,omitempty"`
}

// UpdateApplication implements `PATCH /admin/applications/{app}`.
func (h *Handlers) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(chi.URLParam(r, "app"))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid application id"))
		return
	}
	var req updateApplicationRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	err = h.Apps.Update(r.Context(), appID, storageApplicationUpdate(req))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

// ResetApplicationSecret implements `POST /admin/applications/{app}/reset-secret`.
func (h *Handlers) ResetApplicationSecret(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(chi.URLParam(r, "app"))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid application id"))
		return
	}
	secret, err := h.Apps.ResetSecret(r.Context(), appID)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"app_secret": secret})
}

// DeleteApplication implements `DELETE /admin/applications/{app}`.
func (h *Handlers) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(chi.URLParam(r, "app"))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindValidationError, "invalid application id"))
		return
	}
	if err := h.Apps.Delete(r.Context(), appID); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.Wrap(errs.KindServiceUnavailable, "failed to delete application", err))
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

func (h *Handlers) resolveAppAndPlan(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	appID, err := uuid.Parse(chi.URLParam(r, "app"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errs.New(errs.KindValidationError, "invalid application id")
	}
	app, err := h.Apps.GetByID(r.Context(), appID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if app.SubscriptionPlanID == nil {
		return uuid.Nil, uuid.Nil, errs.New(errs.KindQuotaNotConfigured, "application has no bound subscription plan")
	}
	return app.AppID, *app.SubscriptionPlanID, nil
}
