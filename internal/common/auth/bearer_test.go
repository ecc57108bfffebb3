package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "console-signing-key"

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":      1,
		"is_superuser": true,
		"exp":          time.Now().Add(time.Hour).Unix(),
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Error("Expected error without a secret")
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, RequireClaim: "is_superuser"})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExp := validClaims()
	delete(noExp, "exp")
	staff := validClaims()
	staff["is_superuser"] = false

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", sign(t, testSecret, validClaims()), nil},
		{"missing", "", ErrMissingToken},
		{"wrong key", sign(t, "other-key", validClaims()), ErrInvalidToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"expired", sign(t, testSecret, expired), ErrExpiredToken},
		{"no expiry", sign(t, testSecret, noExp), ErrInvalidToken},
		{"not super admin", sign(t, testSecret, staff), ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVerifier_Issuer(t *testing.T) {
	v, _ := NewVerifier(Config{Secret: testSecret, Issuer: "backend"})

	claims := validClaims()
	if _, err := v.Verify(sign(t, testSecret, claims)); err != ErrInvalidToken {
		t.Errorf("Token without issuer should be rejected, got %v", err)
	}

	claims["iss"] = "backend"
	if _, err := v.Verify(sign(t, testSecret, claims)); err != nil {
		t.Errorf("Matching issuer should pass, got %v", err)
	}
}

func TestVerifier_Require(t *testing.T) {
	v, _ := NewVerifier(Config{Secret: testSecret, RequireClaim: "is_superuser"})

	var seen jwt.MapClaims
	handler := v.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	staff := validClaims()
	staff["is_superuser"] = false

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"forbidden", "Bearer " + sign(t, testSecret, staff), http.StatusForbidden},
		{"valid", "bearer " + sign(t, testSecret, validClaims()), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodDelete, "/alerts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusNoContent && seen == nil {
				t.Error("Claims should be in the request context")
			}
			if tt.want != http.StatusNoContent && seen != nil {
				t.Error("Rejected request should not reach the handler")
			}
		})
	}
}
