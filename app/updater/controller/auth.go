package controller

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashToken returns the bcrypt hash of an admin token. Tokens that already
// are bcrypt hashes are returned as is.
func HashToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	if strings.HasPrefix(token, "$2a$") || strings.HasPrefix(token, "$2b$") || strings.HasPrefix(token, "$2y$") {
		return []byte(token), nil // already bcrypt
	}
	return bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
}

// bearer returns the token of an "Authorization: Bearer" header.
func bearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// ValidateToken checks the bearer token against AdminTokenHash.
func (c *Controller) ValidateToken(token string) bool {
	if len(c.AdminTokenHash) == 0 || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.AdminTokenHash, []byte(token)) == nil
}

// ValidateRole checks that token is an HS256 JWT signed with JWTSecret whose
// role claim equals role.
func (c *Controller) ValidateRole(token, role string) bool {
	if len(c.JWTSecret) == 0 || token == "" {
		return false
	}

	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return false
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}

	tokenRole, _ := claims["role"].(string)
	return tokenRole == role
}

// RequireAdmin middleware
func (c *Controller) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if c.ValidateToken(token) || c.ValidateRole(token, "admin") {
			next.ServeHTTP(w, r)
			return
		}
		c.writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}
