package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", 1)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashPassword_DistinctSaltsProduceDistinctHashes(t *testing.T) {
	a, err := HashPassword("same-password", 1)
	require.NoError(t, err)
	b, err := HashPassword("same-password", 1)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
