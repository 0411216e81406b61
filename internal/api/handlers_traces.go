package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
)

const defaultTraceLimit = 20

// TraceArchive reads traces that may have left the in-memory log.
type TraceArchive interface {
	GetTrace(ctx context.Context, id string) (*models.Trace, error)
	ListTraces(ctx context.Context, label string, limit int) ([]models.Trace, error)
}

type TraceHandler struct {
	log     *telemetry.Log
	archive TraceArchive
}

func NewTraceHandler(log *telemetry.Log, archive TraceArchive) *TraceHandler {
	return &TraceHandler{log: log, archive: archive}
}

type traceListResponse struct {
	Traces []models.Trace `json:"traces"`
	Source string         `json:"source"`
}

// List handles GET /traces?limit=&label=&source=archive
func (h *TraceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultTraceLimit
	}
	label := q.Get("label")

	if q.Get("source") == "archive" {
		if h.archive == nil {
			writeError(w, http.StatusServiceUnavailable, "trace archive disabled")
			return
		}
		traces, err := h.archive.ListTraces(r.Context(), label, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if traces == nil {
			traces = []models.Trace{}
		}
		writeJSON(w, http.StatusOK, traceListResponse{Traces: traces, Source: "archive"})
		return
	}

	traces := make([]models.Trace, 0, limit)
	for _, t := range h.log.List(0) {
		if len(traces) == limit {
			break
		}
		if label == "" || t.IntentLabel == label {
			traces = append(traces, t)
		}
	}
	writeJSON(w, http.StatusOK, traceListResponse{Traces: traces, Source: "memory"})
}

// Get handles GET /traces/{id}. The archive is consulted when the trace has
// been trimmed from memory.
func (h *TraceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if t, ok := h.log.Get(id); ok {
		writeJSON(w, http.StatusOK, t)
		return
	}
	if h.archive != nil {
		t, err := h.archive.GetTrace(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if t != nil {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "trace not found")
}

// Patch handles PATCH /traces/{id}
func (h *TraceHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch models.TracePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, err)
		return
	}
	if _, ok := h.log.Get(id); !ok {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	if err := h.log.Update(r.Context(), id, patch); err != nil {
		writeServiceError(w, err)
		return
	}
	t, _ := h.log.Get(id)
	writeJSON(w, http.StatusOK, t)
}
