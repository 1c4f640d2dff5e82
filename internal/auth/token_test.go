package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSigner_IssueAndVerify(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token, err := s.Issue("user-1", RoleUser)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, RoleUser, claims.Role)
}

func TestSigner_RejectsTamperedPayload(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token, err := s.Issue("user-1", RoleUser)
	require.NoError(t, err)

	tampered := token[:len(token)-1] + "x"
	_, err = s.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_RejectsWrongSecret(t *testing.T) {
	issuer := NewSigner("secret-a", time.Hour)
	token, err := issuer.Issue("user-1", RoleUser)
	require.NoError(t, err)

	verifier := NewSigner("secret-b", time.Hour)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_RejectsExpiredToken(t *testing.T) {
	s := NewSigner("secret", -time.Minute)
	token, err := s.Issue("user-1", RoleUser)
	require.NoError(t, err)

	_, err = s.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
