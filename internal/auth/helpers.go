package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken extracts the signed credential from the Authorization
// header. Returns ErrMissingToken or ErrInvalidToken on malformed input.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
