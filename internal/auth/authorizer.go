package auth

import (
	"context"
)

// ActorInfo identifies the principal behind a request: either an end user
// (Role == RoleUser, UserID is their model.User.UserID) or a trusted
// service caller (Role == RoleService, UserID is the service's claimed
// identity, e.g. "recurrence-worker").
type ActorInfo struct {
	UserID string
	Role   Role
}

// Authorizer validates a bearer credential and returns the actor behind it.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*ActorInfo, error)
}

// TokenAuthorizer verifies HMAC-signed credentials issued by Signer and
// enforces the service-credential allow-list: a credential with
// Role==RoleService must name a caller identity present in allowList,
// since that claim, not network origin, is the only thing a sidecar
// can't spoof without the signing secret.
type TokenAuthorizer struct {
	signer    *Signer
	allowList map[string]bool
}

func NewTokenAuthorizer(signer *Signer, serviceAllowList []string) *TokenAuthorizer {
	allow := make(map[string]bool, len(serviceAllowList))
	for _, id := range serviceAllowList {
		allow[id] = true
	}
	return &TokenAuthorizer{signer: signer, allowList: allow}
}

func (a *TokenAuthorizer) Authorize(ctx context.Context, token string) (*ActorInfo, error) {
	claims, err := a.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Role == RoleService && !a.allowList[claims.Subject] {
		return nil, ErrForbiddenCaller
	}
	return &ActorInfo{UserID: claims.Subject, Role: claims.Role}, nil
}
