package license

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndIsHashed(t *testing.T) {
	t.Parallel()

	digest := Hash("my-secret")
	assert.True(t, strings.HasPrefix(digest, DigestPrefix))
	assert.True(t, IsHashed(digest))
	assert.False(t, IsHashed("my-secret"))
	assert.False(t, IsHashed("lk_abc123"))

	// Deterministic: same input, same digest.
	assert.Equal(t, digest, Hash("my-secret"))
	assert.NotEqual(t, digest, Hash("other-secret"))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	bcryptDigest, err := bcrypt.GenerateFromPassword([]byte("bcrypt-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		provided string
		stored   string
		expected bool
	}{
		{
			name:     "matching digest",
			provided: "my-secret",
			stored:   Hash("my-secret"),
			expected: true,
		},
		{
			name:     "digest of a different secret",
			provided: "my-secret",
			stored:   Hash("other-secret"),
			expected: false,
		},
		{
			name:     "legacy plaintext match",
			provided: "my-secret",
			stored:   "my-secret",
			expected: true,
		},
		{
			name:     "legacy plaintext mismatch",
			provided: "my-secret",
			stored:   "other-secret",
			expected: false,
		},
		{
			name:     "bcrypt digest match",
			provided: "bcrypt-secret",
			stored:   string(bcryptDigest),
			expected: true,
		},
		{
			name:     "bcrypt digest mismatch",
			provided: "wrong",
			stored:   string(bcryptDigest),
			expected: false,
		},
		{
			name:     "digest presented against plaintext row does not match",
			provided: Hash("my-secret"),
			stored:   "my-secret",
			expected: false,
		},
		{
			name:     "empty provided against digest",
			provided: "",
			stored:   Hash("my-secret"),
			expected: false,
		},
		{
			name:     "empty both on plaintext path",
			provided: "",
			stored:   "",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, Verify(tt.provided, tt.stored))
		})
	}
}

func TestLookupForms(t *testing.T) {
	t.Parallel()

	plaintext, digest := LookupForms("my-secret")
	assert.Equal(t, "my-secret", plaintext)
	assert.Equal(t, Hash("my-secret"), digest)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		key, err := Generate()
		require.NoError(t, err)

		assert.Len(t, key, GeneratedKeyLength)
		assert.True(t, strings.HasPrefix(key, KeyPrefix))
		assert.False(t, IsHashed(key))
		assert.False(t, seen[key], "generated keys must not repeat")
		seen[key] = true

		// A generated key verifies against its own digest.
		assert.True(t, Verify(key, Hash(key)))
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	key, err := Generate()
	require.NoError(t, err)

	masked := Mask(key)
	assert.NotEqual(t, key, masked)
	assert.Contains(t, masked, strings.Repeat("*", 8))
	assert.True(t, strings.HasPrefix(masked, key[:3]))
	assert.True(t, strings.HasSuffix(masked, key[len(key)-4:]))
	assert.Len(t, masked, 15)

	// Short secrets are masked in full.
	assert.Equal(t, "********", Mask("abc"))
	assert.Equal(t, "********", Mask(""))
	assert.Equal(t, "********", Mask("12345678901234"))
}
