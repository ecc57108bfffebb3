package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// SnapshotProvider exposes the latest snapshot and on-demand refresh
type SnapshotProvider interface {
	Latest() *snapshot.Snapshot
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

// errorResponse is the JSON body of an API error
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

// Handler provides HTTP endpoints for the alert monitor
type Handler struct {
	monitor   *Monitor
	snapshots SnapshotProvider
}

// NewHandler creates a new alert HTTP handler. snapshots may be nil, in
// which case the snapshot endpoints report 404.
func NewHandler(monitor *Monitor, snapshots SnapshotProvider) *Handler {
	return &Handler{monitor: monitor, snapshots: snapshots}
}

// RegisterRoutes registers alert routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/active", h.ListActive)
		r.Get("/summary", h.Summary)
		r.Get("/severity/{severity}", h.ListBySeverity)
		r.Post("/{id}/acknowledge", h.Acknowledge)
		r.Delete("/{id}", h.Dismiss)
		r.Delete("/", h.ClearAll)
		r.Put("/enabled", h.SetEnabled)
	})
	r.Get("/thresholds", h.Thresholds)
	r.Get("/snapshot", h.Snapshot)
	r.Post("/snapshot/refresh", h.RefreshSnapshot)
}

// List returns all alerts
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Store().Alerts())
}

// ListActive returns unacknowledged alerts
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Store().ActiveAlerts())
}

// ListBySeverity returns alerts filtered by severity
func (h *Handler) ListBySeverity(w http.ResponseWriter, r *http.Request) {
	severity, err := ParseSeverity(chi.URLParam(r, "severity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Store().BySeverity(severity))
}

// Summary returns the presentation model
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// Acknowledge acknowledges an alert
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.monitor.Store().Acknowledge(id) {
		w.WriteHeader(http.StatusNoContent)
	} else {
		writeError(w, http.StatusNotFound, "not_found", "Alert not found")
	}
}

// Dismiss removes an alert
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.monitor.Store().Dismiss(id) {
		w.WriteHeader(http.StatusNoContent)
	} else {
		writeError(w, http.StatusNotFound, "not_found", "Alert not found")
	}
}

// ClearAll clears all alerts
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.monitor.Store().ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// SetEnabled switches alert derivation on or off
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad_request", `Body must be {"enabled": true|false}`)
		return
	}

	h.monitor.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.monitor.Store().Enabled()})
}

// Thresholds returns the threshold table
func (h *Handler) Thresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Thresholds())
}

// Snapshot returns the latest snapshot, or 204 when none has arrived
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "not_found", "No snapshot source configured")
		return
	}

	snap := h.snapshots.Latest()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RefreshSnapshot fetches a snapshot now and runs a derivation pass on it
func (h *Handler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "not_found", "No snapshot source configured")
		return
	}

	snap, err := h.snapshots.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrRefreshThrottled) {
			writeError(w, http.StatusTooManyRequests, "throttled", "Refresh requested too often, try again shortly")
			return
		}
		slog.Warn("On-demand snapshot refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend_error", "Failed to fetch health snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
