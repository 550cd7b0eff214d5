package appregistry_test

import (
	"testing"

	"github.com/lavente-care/iam-gateway/internal/appregistry"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestLoginMethodEnabled(t *testing.T) {
	app := &storage.Application{EnabledLoginMethods: map[string]bool{"password": true}}
	assert.True(t, appregistry.LoginMethodEnabled(app, "password"))
	assert.False(t, appregistry.LoginMethodEnabled(app, "oauth"))
}

func TestScopeGranted(t *testing.T) {
	app := &storage.Application{GrantedScopes: map[string]bool{"platform:admin": true}}
	assert.True(t, appregistry.ScopeGranted(app, "platform:admin"))
	assert.False(t, appregistry.ScopeGranted(app, "platform:read"))
}
