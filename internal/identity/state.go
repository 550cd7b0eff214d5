// Package identity implements component D: the user lifecycle state
// machine and the login orchestration built on top of it.
package identity

import (
	"time"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/storage"
)

// CheckLoginEligible enforces the status preconditions for a login
// attempt, auto-unlocking an account whose lockout window has elapsed
// (§4.D transition: locked -> active when now >= locked_until).
func CheckLoginEligible(u *storage.User) error {
	if u.Status == storage.UserStatusLocked {
		if u.LockedUntil != nil && time.Now().Before(*u.LockedUntil) {
			return errs.New(errs.KindAccountLocked, "account is locked").
				WithDetails(map[string]interface{}{"locked_until": u.LockedUntil})
		}
		// Window elapsed; caller should unlock via UserRepo.UnlockIfExpired
		// before re-checking the password, per §4.D transition table.
	}
	return nil
}

// CheckCodeLoginEligible enforces the stricter precondition for
// code-based login methods (§4.D rule: "require status == active").
func CheckCodeLoginEligible(u *storage.User) error {
	if u.Status != storage.UserStatusActive {
		return errs.New(errs.KindAccountNotActive, "account is not active")
	}
	return nil
}
