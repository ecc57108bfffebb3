// Package backend is a client for the external REST API that owns the
// system health data.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Config configures the backend client
type Config struct {
	// BaseURL of the backend API, e.g. https://api.example.com
	BaseURL string

	// HealthPath is the system health snapshot endpoint
	HealthPath string

	// RefreshPath is the access token refresh endpoint
	RefreshPath string

	// AccessToken and RefreshToken are the bearer credentials
	AccessToken  string
	RefreshToken string

	// Timeout for a single HTTP request
	Timeout time.Duration

	// TokenRefreshSkew refreshes the access token this long before it expires
	TokenRefreshSkew time.Duration

	// CircuitBreaker settings
	CircuitBreakerEnabled     bool
	CircuitBreakerRatio       float64       // Failure ratio to trip
	CircuitBreakerMinRequests uint32        // Min requests before evaluating ratio
	CircuitBreakerInterval    time.Duration // Stats window
	CircuitBreakerTimeout     time.Duration // Time in open state before half-open
	CircuitBreakerHalfOpenMax uint32        // Requests allowed while half-open
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BaseURL:                   "http://localhost:8000",
		HealthPath:                "/api/system/health/",
		RefreshPath:               "/api/auth/token/refresh/",
		Timeout:                   10 * time.Second,
		TokenRefreshSkew:          30 * time.Second,
		CircuitBreakerEnabled:     true,
		CircuitBreakerRatio:       0.5,
		CircuitBreakerMinRequests: 5,
		CircuitBreakerInterval:    60 * time.Second,
		CircuitBreakerTimeout:     30 * time.Second,
		CircuitBreakerHalfOpenMax: 1,
	}
}

// Client talks to the backend API
type Client struct {
	baseURL        string
	healthPath     string
	httpClient     *http.Client
	tokens         *tokenSource
	circuitBreaker *gobreaker.CircuitBreaker
}

// NewClient creates a new backend client
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		healthPath: cfg.HealthPath,
		httpClient: httpClient,
		tokens: &tokenSource{
			access:     cfg.AccessToken,
			refresh:    cfg.RefreshToken,
			refreshURL: baseURL + cfg.RefreshPath,
			skew:       cfg.TokenRefreshSkew,
			httpClient: httpClient,
			now:        time.Now,
		},
	}

	if cfg.CircuitBreakerEnabled {
		c.circuitBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "backend",
			MaxRequests: cfg.CircuitBreakerHalfOpenMax,
			Interval:    cfg.CircuitBreakerInterval,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.CircuitBreakerMinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cfg.CircuitBreakerRatio
			},
			IsSuccessful: isSuccessful,
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				slog.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())

				var stateValue float64
				switch to {
				case gobreaker.StateClosed:
					stateValue = float64(metrics.CircuitBreakerClosed)
				case gobreaker.StateOpen:
					stateValue = float64(metrics.CircuitBreakerOpen)
					metrics.BackendCircuitBreakerTrips.WithLabelValues(name).Inc()
				case gobreaker.StateHalfOpen:
					stateValue = float64(metrics.CircuitBreakerHalfOpen)
				}
				metrics.BackendCircuitBreakerState.WithLabelValues(name).Set(stateValue)
			},
		})
		metrics.BackendCircuitBreakerState.WithLabelValues("backend").Set(float64(metrics.CircuitBreakerClosed))
	}

	slog.Info("Backend client configured",
		"baseUrl", baseURL,
		"healthPath", cfg.HealthPath,
		"tokenRefresh", cfg.RefreshToken != "",
		"circuitBreaker", cfg.CircuitBreakerEnabled)

	return c
}

// isSuccessful keeps client errors and cancellations from tripping the breaker
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsClientError()
	}
	return false
}

// FetchHealthSnapshot fetches the current system health snapshot
func (c *Client) FetchHealthSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := c.getJSON(ctx, "health", c.healthPath, &snap); err != nil {
		return nil, err
	}
	snap.ReceivedAt = time.Now()
	return &snap, nil
}

// CircuitState returns the breaker state name, or "disabled"
func (c *Client) CircuitState() string {
	if c.circuitBreaker == nil {
		return "disabled"
	}
	return c.circuitBreaker.State().String()
}

// Health returns an error while the circuit breaker is open
func (c *Client) Health() error {
	if c.circuitBreaker != nil && c.circuitBreaker.State() == gobreaker.StateOpen {
		return ErrBackendUnavailable
	}
	return nil
}

// getJSON runs a GET through the circuit breaker and decodes the body
func (c *Client) getJSON(ctx context.Context, endpoint, path string, out interface{}) error {
	call := func() (interface{}, error) {
		return nil, c.doWithAuthRetry(ctx, endpoint, path, out)
	}

	if c.circuitBreaker == nil {
		_, err := call()
		return err
	}

	_, err := c.circuitBreaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		slog.Warn("Circuit breaker open, skipping backend call", "endpoint", endpoint)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}

// doWithAuthRetry performs the request; a 401 triggers one token refresh
// and one retry when a refresh token is configured.
func (c *Client) doWithAuthRetry(ctx context.Context, endpoint, path string, out interface{}) error {
	err := c.do(ctx, endpoint, path, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || !c.tokens.CanRefresh() {
		return err
	}

	slog.Info("Backend rejected access token, refreshing", "endpoint", endpoint)
	if rerr := c.tokens.ForceRefresh(ctx); rerr != nil {
		return fmt.Errorf("refresh after 401: %w", rerr)
	}
	return c.do(ctx, endpoint, path, out)
}

func (c *Client) do(ctx context.Context, endpoint, path string, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
