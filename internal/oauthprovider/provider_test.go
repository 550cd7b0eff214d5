package oauthprovider_test

import (
	"context"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/oauthprovider"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubProvider struct{ name string }

func (s stubProvider) AuthorizeURL(state, redirectURI string) string { return "https://example.test/authorize?state=" + state }
func (s stubProvider) ExchangeAndFetchProfile(ctx context.Context, code, redirectURI string) (*oauthprovider.Profile, error) {
	return &oauthprovider.Profile{ProviderUserID: s.name, RawTokens: &oauth2.Token{}}, nil
}

func TestRegistry_RegisterThenGetRoundtrips(t *testing.T) {
	reg := oauthprovider.NewRegistry()
	reg.Register("google", stubProvider{name: "google"})

	p, ok := reg.Get("google")
	require.True(t, ok)

	profile, err := p.ExchangeAndFetchProfile(context.Background(), "code", "https://app.test/callback")
	require.NoError(t, err)
	require.Equal(t, "google", profile.ProviderUserID)
}

func TestRegistry_UnknownProviderNotFound(t *testing.T) {
	reg := oauthprovider.NewRegistry()
	_, ok := reg.Get("does-not-exist")
	require.False(t, ok)
}
