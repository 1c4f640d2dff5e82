package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskcore/internal/auth"
)

func newAuthz(t *testing.T) (*auth.Signer, *auth.TokenAuthorizer) {
	signer := auth.NewSigner("secret", time.Hour)
	return signer, auth.NewTokenAuthorizer(signer, []string{"recurrence-worker"})
}

func TestAuthenticate_RejectsMissingToken(t *testing.T) {
	_, authz := newAuthz(t)
	h := Authenticate(authz)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_AttachesActorForValidUserToken(t *testing.T) {
	signer, authz := newAuthz(t)
	token, err := signer.Issue("u1", auth.RoleUser)
	require.NoError(t, err)

	var gotActor *auth.ActorInfo
	h := Authenticate(authz)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotActor)
	require.Equal(t, "u1", gotActor.UserID)
}

func TestAuthenticate_RejectsDisallowedServiceCredential(t *testing.T) {
	signer, authz := newAuthz(t)
	token, err := signer.Issue("rogue-service", auth.RoleService)
	require.NoError(t, err)

	h := Authenticate(authz)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireService_RejectsUserActor(t *testing.T) {
	signer, authz := newAuthz(t)
	token, err := signer.Issue("u1", auth.RoleUser)
	require.NoError(t, err)

	h := Authenticate(authz)(RequireService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireService_AllowsServiceActor(t *testing.T) {
	signer, authz := newAuthz(t)
	token, err := signer.Issue("recurrence-worker", auth.RoleService)
	require.NoError(t, err)

	h := Authenticate(authz)(RequireService(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
