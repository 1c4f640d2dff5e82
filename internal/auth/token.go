package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Role distinguishes end-user credentials from service-to-service
// credentials (spec's supplemented service-credential feature).
type Role string

const (
	RoleUser    Role = "user"
	RoleService Role = "service"
)

// Claims is the payload carried inside a signed bearer credential.
type Claims struct {
	Subject   string    `json:"sub"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func (c Claims) expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// Signer issues and verifies HMAC-signed bearer credentials. The wire
// format is base64url(payload) + "." + base64url(HMAC-SHA256(payload)),
// deliberately simple rather than a full JWT: the spec names only "HMAC
// key for bearer credentials" and "credential expiry duration", not a JWT
// library or registered claim set.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a new credential for subject with the given role.
func (s *Signer) Issue(subject string, role Role) (string, error) {
	now := time.Now().UTC()
	claims := Claims{Subject: subject, Role: role, IssuedAt: now, ExpiresAt: now.Add(s.ttl)}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	sig := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks the credential's signature and expiry and returns its claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	dot := -1
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(token[:dot])
	if err != nil {
		return nil, ErrInvalidToken
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(token[dot+1:])
	if err != nil {
		return nil, ErrInvalidToken
	}
	wantSig := s.sign(payload)
	if subtle.ConstantTimeCompare(gotSig, wantSig) != 1 {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.expired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
