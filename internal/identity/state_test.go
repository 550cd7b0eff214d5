package identity_test

import (
	"testing"
	"time"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/identity"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLoginEligible_ActiveUserPasses(t *testing.T) {
	u := &storage.User{Status: storage.UserStatusActive}
	require.NoError(t, identity.CheckLoginEligible(u))
}

func TestCheckLoginEligible_LockedWithinWindowRejects(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)
	u := &storage.User{Status: storage.UserStatusLocked, LockedUntil: &future}

	err := identity.CheckLoginEligible(u)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindAccountLocked, e.Kind)
}

func TestCheckLoginEligible_LockedWindowElapsedPasses(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	u := &storage.User{Status: storage.UserStatusLocked, LockedUntil: &past}
	require.NoError(t, identity.CheckLoginEligible(u))
}

func TestCheckCodeLoginEligible_RequiresActive(t *testing.T) {
	require.NoError(t, identity.CheckCodeLoginEligible(&storage.User{Status: storage.UserStatusActive}))

	err := identity.CheckCodeLoginEligible(&storage.User{Status: storage.UserStatusPendingVerification})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindAccountNotActive, e.Kind)
}
