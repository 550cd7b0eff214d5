package oauthprovider_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/oauthprovider"
	"github.com/stretchr/testify/require"
)

func newTestOAuthServer(t *testing.T, userInfo map[string]interface{}) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "stub-access-token",
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, srv.URL
}

func TestGenericProvider_ExchangeAndFetchProfile_MapsStandardFields(t *testing.T) {
	srv, base := newTestOAuthServer(t, map[string]interface{}{
		"sub":   "user-123",
		"email": "person@example.test",
		"name":  "Person Testing",
	})
	defer srv.Close()

	p := oauthprovider.NewGenericProvider("client-id", "client-secret", base+"/authorize", base+"/token", base+"/userinfo", []string{"openid", "email"})

	profile, err := p.ExchangeAndFetchProfile(t.Context(), "auth-code", "https://app.test/callback")
	require.NoError(t, err)
	require.Equal(t, "user-123", profile.ProviderUserID)
	require.Equal(t, "person@example.test", profile.Email)
	require.Equal(t, "Person Testing", profile.DisplayName)
}

func TestGenericProvider_AuthorizeURL_IncludesState(t *testing.T) {
	p := oauthprovider.NewGenericProvider("client-id", "client-secret", "https://idp.test/authorize", "https://idp.test/token", "https://idp.test/userinfo", []string{"openid"})

	url := p.AuthorizeURL("the-state-value", "https://app.test/callback")

	require.Contains(t, url, "the-state-value")
}

func TestGenericProvider_UpstreamErrorOnNon200Userinfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "stub-access-token", "token_type": "Bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := oauthprovider.NewGenericProvider("client-id", "client-secret", srv.URL+"/authorize", srv.URL+"/token", srv.URL+"/userinfo", []string{"openid"})

	_, err := p.ExchangeAndFetchProfile(t.Context(), "auth-code", "https://app.test/callback")
	require.Error(t, err)
}
