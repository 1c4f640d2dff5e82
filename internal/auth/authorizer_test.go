package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenAuthorizer_UserCredential(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	authz := NewTokenAuthorizer(signer, []string{"recurrence-worker"})

	token, err := signer.Issue("user-42", RoleUser)
	require.NoError(t, err)

	actor, err := authz.Authorize(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-42", actor.UserID)
	require.Equal(t, RoleUser, actor.Role)
}

func TestTokenAuthorizer_ServiceCredentialAllowed(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	authz := NewTokenAuthorizer(signer, []string{"recurrence-worker"})

	token, err := signer.Issue("recurrence-worker", RoleService)
	require.NoError(t, err)

	actor, err := authz.Authorize(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, RoleService, actor.Role)
}

func TestTokenAuthorizer_ServiceCredentialRejectedWhenNotAllowListed(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	authz := NewTokenAuthorizer(signer, []string{"recurrence-worker"})

	token, err := signer.Issue("some-other-service", RoleService)
	require.NoError(t, err)

	_, err = authz.Authorize(context.Background(), token)
	require.ErrorIs(t, err, ErrForbiddenCaller)
}
