package taskcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

const displayNameMaxLen = 200

// UserService handles registration and login, the two operations the
// authentication substrate (spec §4.7) names explicitly. Grounded on the
// teacher's UserService, extended with the Argon2id hash + bearer-token
// issuance this domain's auth substrate requires.
type UserService struct {
	store  store.Store
	signer *auth.Signer
	cost   uint32
}

func NewUserService(s store.Store, signer *auth.Signer, kdfCost uint32) *UserService {
	return &UserService{store: s, signer: signer, cost: kdfCost}
}

func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %w", model.ErrValidation)
	}
	if len(displayName) > displayNameMaxLen {
		return nil, fmt.Errorf("display name exceeds %d characters: %w", displayNameMaxLen, model.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", model.ErrValidation)
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &model.User{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreationTime: now,
		UpdateTime:   now,
	}
	return s.store.Users().Create(ctx, u)
}

// Login verifies the password and mints a RoleUser bearer credential.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	token, err := s.signer.Issue(u.UserID, auth.RoleUser)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}
