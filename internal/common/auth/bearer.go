// Package auth verifies the bearer JWTs the admin console sends with API
// requests. Tokens are signed by the backend with a shared HMAC key.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrForbidden    = errors.New("insufficient privileges")
)

// ContextKey is a type for context keys
type ContextKey string

// ContextKeyClaims is the key for the verified JWT claims
const ContextKeyClaims ContextKey = "claims"

// Config holds token verification settings
type Config struct {
	// Secret is the HMAC key shared with the backend
	Secret string

	// Issuer and Audience are checked when set
	Issuer   string
	Audience string

	// RequireClaim names a boolean claim that must be true (e.g. "is_superuser")
	RequireClaim string
}

// Verifier validates bearer tokens
type Verifier struct {
	secret       []byte
	requireClaim string
	parser       *jwt.Parser
}

// NewVerifier creates a verifier. The secret is required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		secret:       []byte(cfg.Secret),
		requireClaim: cfg.RequireClaim,
		parser:       jwt.NewParser(opts...),
	}, nil
}

// Verify validates a token and returns its claims
func (v *Verifier) Verify(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if v.requireClaim != "" {
		if ok, _ := claims[v.requireClaim].(bool); !ok {
			return nil, ErrForbidden
		}
	}

	return claims, nil
}

// Require rejects requests without a valid bearer token
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.Verify(BearerToken(r))
		switch {
		case errors.Is(err, ErrForbidden):
			writeJSONError(w, http.StatusForbidden, "forbidden", "Super admin access required")
			return
		case errors.Is(err, ErrMissingToken):
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		case err != nil:
			slog.Debug("Token validation failed", "error", err, "path", r.URL.Path)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the verified claims, or nil on unauthenticated requests
func ClaimsFrom(ctx context.Context) jwt.MapClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(jwt.MapClaims)
	return claims
}

// BearerToken extracts the bearer token from the Authorization header
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
