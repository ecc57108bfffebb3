package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// tokenSource holds the bearer tokens and refreshes the access token when
// it is about to expire. Tokens are inspected, not verified; the backend
// is the only party that validates them.
type tokenSource struct {
	mu         sync.Mutex
	access     string
	refresh    string
	refreshURL string
	skew       time.Duration
	httpClient *http.Client
	now        func() time.Time
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// tokenExpiry reads the exp claim of a JWT without verifying it
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Token returns a usable access token, refreshing it first when it expires
// within the skew window and a refresh token is configured.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refresh == "" {
		return t.access, nil
	}

	if t.access != "" {
		exp, ok := tokenExpiry(t.access)
		if !ok || t.now().Add(t.skew).Before(exp) {
			return t.access, nil
		}
		slog.Debug("Access token expiring, refreshing", "expiresAt", exp)
	}

	if err := t.refreshLocked(ctx); err != nil {
		return "", err
	}
	return t.access, nil
}

// ForceRefresh obtains a new access token regardless of expiry
func (t *tokenSource) ForceRefresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.refreshLocked(ctx)
}

// CanRefresh reports whether a refresh token is configured
func (t *tokenSource) CanRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh != ""
}

func (t *tokenSource) refreshLocked(ctx context.Context) error {
	if t.refresh == "" {
		return ErrNoRefreshToken
	}

	payload, err := json.Marshal(refreshRequest{Refresh: t.refresh})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues("token_refresh").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues("token_refresh", "error").Inc()
		metrics.BackendTokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("refresh access token: %w", err)
	}
	defer resp.Body.Close()

	metrics.BackendRequests.WithLabelValues("token_refresh", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.BackendTokenRefreshes.WithLabelValues("failed").Inc()
		return &APIError{Endpoint: "token_refresh", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.BackendTokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Access == "" {
		metrics.BackendTokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("refresh response carried no access token")
	}

	t.access = out.Access
	// Rotated refresh tokens replace the old one
	if out.Refresh != "" {
		t.refresh = out.Refresh
	}

	metrics.BackendTokenRefreshes.WithLabelValues("success").Inc()
	slog.Info("Backend access token refreshed")
	return nil
}
