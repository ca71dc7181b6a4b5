package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/render"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/app/workspace"
)

// HealthStatus represents the overall health status.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status       HealthStatus `json:"status"`
	Version      string       `json:"version,omitempty"`
	Uptime       string       `json:"uptime,omitempty"`
	StartedAt    string       `json:"started_at,omitempty"`
	Worker       string       `json:"worker,omitempty"`
	GoVersion    string       `json:"go_version,omitempty"`
	NumGoroutine int          `json:"num_goroutine,omitempty"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	startTime time.Time
	version   string
	ws        *workspace.Workspace
}

// NewHealthHandler creates a new health handler. ws may be nil.
func NewHealthHandler(version string, ws *workspace.Workspace) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		ws:        ws,
	}
}

// HandleHealth handles GET /health. The server is degraded when the worker
// connection is no longer open.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       HealthStatusHealthy,
		Version:      h.version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		StartedAt:    h.startTime.UTC().Format(time.RFC3339),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if h.ws != nil {
		if s := h.ws.Session(); s != nil {
			conn := s.Snapshot().Connectivity
			resp.Worker = string(conn)
			if conn != session.ConnectivityOpen {
				resp.Status = HealthStatusDegraded
			}
		}
	}

	if resp.Status != HealthStatusHealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
