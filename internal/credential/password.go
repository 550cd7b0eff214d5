// Package credential implements component A: password hashing/
// verification and application/webhook secret generation.
package credential

import (
	"strings"
	"unicode"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords. Hash runs a memory-hard
// KDF with a per-password salt; Compare runs in constant time relative
// to password content — both properties bcrypt gives for free.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost + 2} // cost 12
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if err := ValidateStrength(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches hash. bcrypt.CompareHashAndPassword
// is constant-time with respect to the candidate password.
func (h *BcryptHasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errs.New(errs.KindInvalidCredentials, "password does not match")
	}
	return nil
}

// ValidateStrength enforces the configurable strength policy (§4.A):
// length >= 8, mixed character classes. Validated before hashing so a
// rejected password never reaches the KDF.
func ValidateStrength(password string) error {
	if len(password) < 8 {
		return errs.New(errs.KindPasswordWeak, "password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*()-_=+[]{};:,.<>/?", r):
			hasSymbol = true
		}
	}
	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return errs.New(errs.KindPasswordWeak, "password must mix at least three character classes")
	}
	return nil
}
