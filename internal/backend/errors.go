package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is returned while the circuit breaker rejects calls
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNoRefreshToken is returned when a refresh is needed but none is configured
	ErrNoRefreshToken = errors.New("no refresh token configured")
)

// APIError is a non-2xx response from the backend
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("backend %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsClientError reports whether the status is a 4xx
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
