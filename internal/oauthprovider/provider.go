// Package oauthprovider defines the single polymorphic OAuthProvider
// capability (§9 design notes) and a name-indexed registry, replacing
// the mixed-concrete-class adapters the distillation's source used.
package oauthprovider

import (
	"context"

	"golang.org/x/oauth2"
)

// Profile is the normalized user-profile blob an OAuth exchange yields
// (§6.5). The core federates no further than this.
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
	RawTokens      *oauth2.Token
}

// Provider is implemented once per OAuth login method (google, apple,
// wechat, alipay); the registry below is the only place call sites
// branch on provider identity.
type Provider interface {
	AuthorizeURL(state, redirectURI string) string
	ExchangeAndFetchProfile(ctx context.Context, code, redirectURI string) (*Profile, error)
}

// Registry indexes Provider implementations by the provider name used in
// the gateway route `/auth/oauth/{provider}`. That route's login-method
// gate checks the single "oauth" entry of Application.EnabledLoginMethods,
// not the provider name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
