package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/domain/project"
	"github.com/launchdeck/launchdeck/internal/infrastructure/store"
	"github.com/launchdeck/launchdeck/internal/pkg/httputil"
)

// DraftHandler exposes the deployment draft, classification and stored
// records.
type DraftHandler struct {
	ws *workspace.Workspace
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(ws *workspace.Workspace) *DraftHandler {
	return &DraftHandler{ws: ws}
}

// ScanRequest is the body of POST /scan.
type ScanRequest struct {
	Repo string `json:"repo"`
}

// RegisterRoutes registers the draft routes.
func (h *DraftHandler) RegisterRoutes(r chi.Router) {
	r.Get("/draft", h.HandleGetDraft)
	r.Put("/draft", h.HandlePutDraft)
	r.Post("/scan", h.HandleScan)
	r.Post("/classify", h.HandleClassify)
	r.Get("/records/{id}", h.HandleGetRecord)
	r.Post("/records/{id}/load", h.HandleLoadRecord)
}

// HandleGetDraft handles GET /draft.
func (h *DraftHandler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.ws.Draft())
}

// HandlePutDraft handles PUT /draft. The new draft is written to the record
// after the debounce interval, and only if its persistable fields changed.
func (h *DraftHandler) HandlePutDraft(w http.ResponseWriter, r *http.Request) {
	var draft deployment.Config
	if !httputil.DecodeJSON(w, r, &draft) {
		return
	}
	render.JSON(w, r, h.ws.Replace(&draft))
}

// HandleScan handles POST /scan.
func (h *DraftHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Repo == "" {
		httputil.BadRequest(w, r, "repo is required")
		return
	}

	result, err := h.ws.Scan(r.Context(), req.Repo)
	if err != nil {
		if errors.Is(err, workspace.ErrNoScanner) {
			httputil.ServiceUnavailable(w, r, "No project scanner configured")
			return
		}
		httputil.BadGateway(w, r, "Failed to scan project", err)
		return
	}
	render.JSON(w, r, result)
}

// HandleClassify handles POST /classify. It classifies the posted metadata
// without touching the draft.
func (h *DraftHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var m project.Metadata
	if !httputil.DecodeJSON(w, r, &m) {
		return
	}
	render.JSON(w, r, h.ws.Classify(&m))
}

// HandleGetRecord handles GET /records/{id}.
func (h *DraftHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.ws.Record(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, r, "Record not found")
			return
		}
		httputil.InternalError(w, r, err)
		return
	}
	render.JSON(w, r, doc)
}

// HandleLoadRecord handles POST /records/{id}/load, making the record the
// current draft.
func (h *DraftHandler) HandleLoadRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.ws.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, r, "Record not found")
			return
		}
		httputil.InternalError(w, r, err)
		return
	}
	render.JSON(w, r, cfg)
}
