package handlers

import (
	"net/http"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/lavente-care/iam-gateway/internal/identity"
	"github.com/lavente-care/iam-gateway/internal/verification"
)

type sendEmailCodeRequest struct {
	Email string `json:"email"`
}

// SendEmailCode implements `POST /auth/send-email-code` (§6.1).
func (h *Handlers) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req sendEmailCodeRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	code, err := h.Codes.Send(r.Context(), verification.TargetEmail, req.Email)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	payload := map[string]interface{}{"success": true}
	if code != "" {
		payload["code"] = code
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, payload)
}

type sendSMSRequest struct {
	Phone string `json:"phone"`
}

// SendSMS implements `POST /auth/send-sms`.
func (h *Handlers) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req sendSMSRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	code, err := h.Codes.Send(r.Context(), verification.TargetPhone, req.Phone)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	payload := map[string]interface{}{"success": true}
	if code != "" {
		payload["code"] = code
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, payload)
}

type verifyEmailRegistrationRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmailRegistration implements `POST /auth/verify-email` — the
// activation step for a user created pending_verification by a
// code-less `register/email` call (§3 lifecycle).
func (h *Handlers) VerifyEmailRegistration(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRegistrationRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	u, err := h.Identity.VerifyEmailRegistration(r.Context(), req.Email, req.Code)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"user_id": u.ID, "status": u.Status})
}

type verifyPhoneRegistrationRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// VerifyPhoneRegistration mirrors VerifyEmailRegistration for phone.
func (h *Handlers) VerifyPhoneRegistration(w http.ResponseWriter, r *http.Request) {
	var req verifyPhoneRegistrationRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	u, err := h.Identity.VerifyPhoneRegistration(r.Context(), req.Phone, req.Code)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"user_id": u.ID, "status": u.Status})
}

type registerEmailRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Username         string `json:"username,omitempty"`
	VerificationCode string `json:"verification_code"`
}

// RegisterEmail implements `POST /auth/register/email`.
func (h *Handlers) RegisterEmail(w http.ResponseWriter, r *http.Request) {
	var req registerEmailRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	u, err := h.Identity.RegisterWithEmailCode(r.Context(), gatewayhttp.AppID(r.Context()), req.Email, req.Username, req.Password, req.VerificationCode)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"user_id": u.ID})
}

type registerPhoneRequest struct {
	Phone            string `json:"phone"`
	VerificationCode string `json:"verification_code"`
	Password         string `json:"password"`
	Username         string `json:"username,omitempty"`
}

// RegisterPhone implements `POST /auth/register/phone`.
func (h *Handlers) RegisterPhone(w http.ResponseWriter, r *http.Request) {
	var req registerPhoneRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	u, err := h.Identity.RegisterWithPhoneCode(r.Context(), gatewayhttp.AppID(r.Context()), req.Phone, req.Username, req.Password, req.VerificationCode)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{"user_id": u.ID})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login implements `POST /auth/login`.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	result, err := h.Identity.LoginWithPassword(r.Context(), gatewayhttp.AppID(r.Context()), req.Identifier, req.Password)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	respondLoginResult(w, r, result)
}

type loginPhoneCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// LoginPhoneCode implements `POST /auth/login/phone-code`.
func (h *Handlers) LoginPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req loginPhoneCodeRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	result, err := h.Identity.LoginWithPhoneCode(r.Context(), gatewayhttp.AppID(r.Context()), req.Phone, req.Code)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	respondLoginResult(w, r, result)
}

type loginEmailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginEmailCode implements `POST /auth/login/email-code`.
func (h *Handlers) LoginEmailCode(w http.ResponseWriter, r *http.Request) {
	var req loginEmailCodeRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	result, err := h.Identity.LoginWithEmailCode(r.Context(), gatewayhttp.AppID(r.Context()), req.Email, req.Code)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	respondLoginResult(w, r, result)
}

type oauthLoginRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// OAuthLogin implements `POST /auth/oauth/{provider}`.
func (h *Handlers) OAuthLogin(w http.ResponseWriter, r *http.Request, provider string) {
	var req oauthLoginRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}

	p, ok := h.OAuth.Get(provider)
	if !ok {
		gatewayhttp.RespondError(w, r, h.Log, errs.New(errs.KindLoginMethodDisabled, "oauth provider not configured"))
		return
	}
	profile, err := p.ExchangeAndFetchProfile(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}

	appID := gatewayhttp.AppID(r.Context())
	result, isNewUser, err := h.Identity.LoginWithOAuthProfile(r.Context(), appID, profile.Email, profile.DisplayName)
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}

	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"access_token":      result.Tokens.AccessToken,
		"refresh_token":     result.Tokens.RefreshToken,
		"sso_session_token": result.Tokens.SSOSessionToken,
		"token_type":        "bearer",
		"expires_in":        result.Tokens.ExpiresIn,
		"is_new_user":       isNewUser,
		"user": map[string]interface{}{
			"id":                       result.User.ID,
			"username":                 result.User.Username,
			"email":                    result.User.Email,
			"requires_password_change": result.RequiresPasswordChange,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh implements `POST /auth/refresh`.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	pair, err := h.Tokens.Refresh(r.Context(), req.RefreshToken, gatewayhttp.AppID(r.Context()))
	if err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    pair.ExpiresIn,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout implements `POST /auth/logout`.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	if err := h.Tokens.Logout(r.Context(), req.RefreshToken); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, errs.Wrap(errs.KindServiceUnavailable, "failed to log out", err))
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword implements `POST /auth/change-password` (bearer auth).
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := gatewayhttp.DecodeJSON(r, &req); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	if err := h.Identity.ChangePassword(r.Context(), gatewayhttp.UserID(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		gatewayhttp.RespondError(w, r, h.Log, err)
		return
	}
	gatewayhttp.RespondJSON(w, r, http.StatusOK, nil)
}

func respondLoginResult(w http.ResponseWriter, r *http.Request, result *identity.LoginResult) {
	gatewayhttp.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"access_token":      result.Tokens.AccessToken,
		"refresh_token":     result.Tokens.RefreshToken,
		"sso_session_token": result.Tokens.SSOSessionToken,
		"token_type":        "bearer",
		"expires_in":        result.Tokens.ExpiresIn,
		"user": map[string]interface{}{
			"id":                       result.User.ID,
			"username":                 result.User.Username,
			"email":                    result.User.Email,
			"requires_password_change": result.RequiresPasswordChange,
		},
	})
}
