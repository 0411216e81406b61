package api

import (
	"net/http"
	"strings"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/window"
)

type ContextHandler struct {
	window *window.Window
}

func NewContextHandler(w *window.Window) *ContextHandler {
	return &ContextHandler{window: w}
}

type contextResponse struct {
	Focus  *window.Snapshot       `json:"focus"`
	Recent []window.RecentMessage `json:"recent"`
}

func (h *ContextHandler) current() contextResponse {
	resp := contextResponse{Recent: h.window.Recent()}
	if snap, ok := h.window.Snapshot(); ok {
		resp.Focus = &snap
	}
	if resp.Recent == nil {
		resp.Recent = []window.RecentMessage{}
	}
	return resp
}

// Get handles GET /context
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current())
}

// Register handles POST /context/register. With refresh set, an empty
// entryType keeps the type of the current focus.
func (h *ContextHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.ContextRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.EntryID) == "" {
		writeError(w, http.StatusBadRequest, "entryId is required")
		return
	}
	if req.Refresh {
		h.window.Refresh(req.EntryID, req.EntryType)
	} else {
		h.window.Register(req.EntryID, req.EntryType)
	}
	writeJSON(w, http.StatusOK, h.current())
}

// Advance handles POST /context/advance
func (h *ContextHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req models.ContextAdvanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	h.window.AdvanceTurn(req.CreatedEntry)
	writeJSON(w, http.StatusOK, h.current())
}

// Clear handles DELETE /context
func (h *ContextHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.window.Clear()
	w.WriteHeader(http.StatusNoContent)
}
