package oauthprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"golang.org/x/oauth2"
)

// GenericProvider implements Provider for any standards-compliant OAuth2
// authorization-code flow whose userinfo endpoint returns a flat JSON
// object, which covers google- and apple-style providers without a
// bespoke client per vendor.
type GenericProvider struct {
	oauthConfig     *oauth2.Config
	userInfoURL     string
	idField         string
	emailField      string
	nameField       string
	httpClient      *http.Client
}

// NewGenericProvider wires OAuth client credentials and endpoint URLs
// into an oauth2.Config.
func NewGenericProvider(clientID, clientSecret, authURL, tokenURL, userInfoURL string, scopes []string) *GenericProvider {
	return &GenericProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		idField:     "sub",
		emailField:  "email",
		nameField:   "name",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *GenericProvider) AuthorizeURL(state, redirectURI string) string {
	cfg := *p.oauthConfig
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state)
}

// ExchangeAndFetchProfile implements §6.5's
// exchange_code_and_fetch_profile collaborator contract, bounded by the
// 10s OAuth provider deadline from §5.
func (p *GenericProvider) ExchangeAndFetchProfile(ctx context.Context, code, redirectURI string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg := *p.oauthConfig
	cfg.RedirectURL = redirectURI

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpstreamError, "oauth code exchange failed", err)
	}

	client := cfg.Client(ctx, tok)
	client.Timeout = p.httpClient.Timeout
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpstreamError, "oauth userinfo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindUpstreamError, fmt.Sprintf("oauth userinfo returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpstreamError, "failed to read oauth userinfo body", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.Wrap(errs.KindUpstreamError, "failed to parse oauth userinfo body", err)
	}

	return &Profile{
		ProviderUserID: fmt.Sprint(raw[p.idField]),
		Email:          fmt.Sprint(raw[p.emailField]),
		DisplayName:    fmt.Sprint(raw[p.nameField]),
		RawTokens:      tok,
	}, nil
}
