// Package health serves the liveness and readiness endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Check is the result of a single health check
type Check struct {
	Name   string                 `json:"name"`
	Status Status                 `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// HealthResponse is the body of every health endpoint
type HealthResponse struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// CheckFunc performs a health check
type CheckFunc func() Check

// Checker holds the registered liveness and readiness checks
type Checker struct {
	mu              sync.RWMutex
	livenessChecks  []CheckFunc
	readinessChecks []CheckFunc
}

// NewChecker creates an empty checker. With no checks registered every
// endpoint reports UP.
func NewChecker() *Checker {
	return &Checker{}
}

// AddLivenessCheck registers a check that decides whether the process should be restarted
func (c *Checker) AddLivenessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks = append(c.livenessChecks, check)
}

// AddReadinessCheck registers a check that decides whether the process can serve traffic
func (c *Checker) AddReadinessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks = append(c.readinessChecks, check)
}

// checks snapshots the registered checks so none run under the lock
func (c *Checker) checks(liveness, readiness bool) []CheckFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []CheckFunc
	if liveness {
		out = append(out, c.livenessChecks...)
	}
	if readiness {
		out = append(out, c.readinessChecks...)
	}
	return out
}

func runChecks(checks []CheckFunc) HealthResponse {
	response := HealthResponse{
		Status: StatusUp,
		Checks: make([]Check, 0, len(checks)),
	}

	for _, checkFunc := range checks {
		check := checkFunc()
		response.Checks = append(response.Checks, check)
		if check.Status == StatusDown {
			response.Status = StatusDown
		}
	}

	return response
}

// GetLiveness runs the liveness checks
func (c *Checker) GetLiveness() HealthResponse {
	return runChecks(c.checks(true, false))
}

// GetReadiness runs the readiness checks
func (c *Checker) GetReadiness() HealthResponse {
	return runChecks(c.checks(false, true))
}

// GetHealth runs every check
func (c *Checker) GetHealth() HealthResponse {
	return runChecks(c.checks(true, true))
}

// HandleHealth handles GET /q/health
func (c *Checker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetHealth())
}

// HandleLive handles GET /q/health/live
func (c *Checker) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetLiveness())
}

// HandleReady handles GET /q/health/ready
func (c *Checker) HandleReady(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetReadiness())
}

func writeResponse(w http.ResponseWriter, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")

	if response.Status == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// Component is anything that can name itself and report its health,
// such as a lifecycle service.
type Component interface {
	Name() string
	Health() error
}

// ComponentCheck reports DOWN with the error while the component is unhealthy
func ComponentCheck(component Component) CheckFunc {
	return ErrorCheck(component.Name(), component.Health)
}

// ErrorCheck creates a check that is DOWN whenever fn returns an error
func ErrorCheck(name string, fn func() error) CheckFunc {
	return func() Check {
		if err := fn(); err != nil {
			return Check{
				Name:   name,
				Status: StatusDown,
				Data: map[string]interface{}{
					"error": err.Error(),
				},
			}
		}
		return Check{Name: name, Status: StatusUp}
	}
}

// CircuitBreakerCheck reports the breaker state; an open breaker is DOWN.
// A disabled breaker is always UP.
func CircuitBreakerCheck(name string, state func() string) CheckFunc {
	return func() Check {
		s := state()
		status := StatusUp
		if s == "open" {
			status = StatusDown
		}
		return Check{
			Name:   name,
			Status: status,
			Data: map[string]interface{}{
				"state": s,
			},
		}
	}
}

// AlertsCheck exposes the active alert counts. It is always UP.
func AlertsCheck(counts func() (enabled bool, critical, warning int)) CheckFunc {
	return func() Check {
		enabled, critical, warning := counts()
		return Check{
			Name:   "Alerts",
			Status: StatusUp,
			Data: map[string]interface{}{
				"enabled":  enabled,
				"critical": critical,
				"warning":  warning,
			},
		}
	}
}
