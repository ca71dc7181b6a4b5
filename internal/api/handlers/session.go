package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/pkg/httputil"
)

// SessionHandler exposes the live deployment session.
type SessionHandler struct {
	ws *workspace.Workspace
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(ws *workspace.Workspace) *SessionHandler {
	return &SessionHandler{ws: ws}
}

// RegisterRoutes registers the session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.HandleSnapshot)
		r.Post("/deploy", h.HandleDeploy)
		r.Post("/logs/{service}", h.HandleServiceLogs)
	})
}

// HandleSnapshot handles GET /session.
func (h *SessionHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Session()
	if s == nil {
		httputil.ServiceUnavailable(w, r, "No worker session")
		return
	}
	render.JSON(w, r, s.Snapshot())
}

// HandleDeploy handles POST /session/deploy. A non-empty body replaces the
// draft before it is submitted.
func (h *SessionHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	if h.ws.Deploying() {
		writeSessionError(w, r, workspace.ErrDeploymentInFlight)
		return
	}
	if r.ContentLength != 0 {
		var draft deployment.Config
		if !httputil.DecodeJSON(w, r, &draft) {
			return
		}
		h.ws.Replace(&draft)
	}

	if err := h.ws.Submit(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, h.ws.Session().Snapshot())
}

// HandleServiceLogs handles POST /session/logs/{service}.
func (h *SessionHandler) HandleServiceLogs(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if service == "" {
		httputil.BadRequest(w, r, "Service name is required")
		return
	}
	if err := h.ws.SubscribeLogs(r.Context(), service); err != nil {
		writeSessionError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"service": service, "status": "subscribed"})
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotDeployable):
		httputil.Conflict(w, r, httputil.CodeNotDeployable, "Project has no deployment target")
	case errors.Is(err, workspace.ErrDeploymentInFlight):
		httputil.Conflict(w, r, httputil.CodeDeploymentInFlight, "A deployment is already running")
	case errors.Is(err, workspace.ErrNoSession), errors.Is(err, session.ErrClosed):
		httputil.ServiceUnavailable(w, r, "No worker session")
	case errors.Is(err, session.ErrNoCredentials):
		httputil.ServiceUnavailable(w, r, "No worker credentials configured")
	default:
		httputil.BadGateway(w, r, "Failed to reach the deployment worker", err)
	}
}
