package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, p := range []string{"Strong1!", "", "pässwörd", "with spaces and @$!%*?&"} {
		hash, err := h.Hash(p)
		require.NoError(t, err)
		assert.True(t, h.Verify(p, hash), "plaintext %q should verify", p)
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("Strong1!")
	require.NoError(t, err)
	second, err := h.Hash("Strong1!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("Strong1!", first))
	assert.True(t, h.Verify("Strong1!", second))
}

func TestVerifyRejectsOtherPlaintext(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Strong1!")
	require.NoError(t, err)

	assert.False(t, h.Verify("strong1!", hash))
	assert.False(t, h.Verify("Strong1", hash))
}

func TestVerifyMalformedHashIsFalse(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, hash := range []string{"", "not-a-hash", "$2a$10$short", "$9z$10$abcdefghijklmnopqrstuv"} {
		assert.False(t, h.Verify("Strong1!", hash), "hash %q", hash)
	}
}

func TestNewBcryptHasherDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)

	h := NewBcryptHasher(0)
	hash, err := h.Hash("Strong1!")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.True(t, h.Verify("Strong1!", hash))
}
