package license

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DigestPrefix marks a stored value as a sha256 digest rather than
	// a plaintext secret. The prefix is deliberately discoverable so
	// migration tooling can tell the forms apart.
	DigestPrefix = "sha256:"

	// KeyPrefix is the discoverable prefix on generated license keys.
	KeyPrefix = "lk_"

	// keyRandomBytes is the entropy of a generated key. 32 bytes is 256
	// bits, comfortably above the online-guessing target.
	keyRandomBytes = 32

	// GeneratedKeyLength is the fixed length of a generated key:
	// the prefix plus the unpadded base64url encoding of the entropy.
	GeneratedKeyLength = len(KeyPrefix) + (keyRandomBytes*8+5)/6

	maskRunes      = 8
	maskKeepPrefix = 3
	maskKeepSuffix = 4
)

// Hash returns the prefixed sha256 digest of a secret. Digests are
// one-way; there is no recovery path.
func Hash(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return DigestPrefix + hex.EncodeToString(digest[:])
}

// IsHashed reports whether a stored value carries the digest marker.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, DigestPrefix)
}

// isBcryptDigest reports whether a stored value is a bcrypt digest from
// the earlier hashing scheme.
func isBcryptDigest(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// Verify compares a presented secret against a stored value, which may be
// a sha256 digest, a bcrypt digest, or legacy plaintext. Comparisons are
// constant-time in all branches.
func Verify(provided, stored string) bool {
	switch {
	case IsHashed(stored):
		return constantTimeEqual(Hash(provided), stored)
	case isBcryptDigest(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil
	default:
		// Legacy plaintext path. Permanently supported.
		return constantTimeEqual(provided, stored)
	}
}

// LookupForms returns both storage forms of a secret so a store fetch can
// match a row persisted either way, without the caller knowing which form
// a given row uses.
func LookupForms(secret string) (plaintext, digest string) {
	return secret, Hash(secret)
}

// Generate produces a new license key: a fixed-length, prefixed,
// cryptographically random token.
func Generate() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Mask returns a display-safe partial reveal of a secret for logs and
// admin surfaces: a short prefix, a fixed-width mask, and a short suffix.
// Secrets too short to mask safely are masked in full.
func Mask(secret string) string {
	if len(secret) < maskKeepPrefix+maskKeepSuffix+maskRunes {
		return strings.Repeat("*", maskRunes)
	}
	return secret[:maskKeepPrefix] +
		strings.Repeat("*", maskRunes) +
		secret[len(secret)-maskKeepSuffix:]
}

// constantTimeEqual compares two strings byte-wise in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
