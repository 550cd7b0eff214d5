package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// GenerateAppSecret returns a new application secret: 32 bytes of
// uniform-random data, base64url-encoded for transport, shown to the
// operator exactly once. The store keeps only HashSecret's output.
func GenerateAppSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateWebhookSecret returns a new webhook secret. Unlike the app
// secret, this is stored in plaintext (§4.A) because inbound webhook
// HMAC verification needs it back in cleartext.
func GenerateWebhookSecret() (string, error) {
	return GenerateAppSecret()
}

// HashSecret hashes an application secret for storage. A plain SHA-256
// digest is sufficient here: app secrets are 256 bits of uniform
// randomness, not low-entropy user passwords, so there is no dictionary
// attack surface a memory-hard KDF would close.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecureCompare reports whether two strings are equal using constant-time
// comparison, avoiding timing side-channels on secret material.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// VerifyAppSecret hashes the presented secret and compares it against
// the stored hash in constant time.
func VerifyAppSecret(presented, storedHash string) bool {
	return SecureCompare(HashSecret(presented), storedHash)
}
