package api

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/understanding/internal/memory"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// Indexer mirrors rows into a user's remote retrieval index.
type Indexer interface {
	Index(ctx context.Context, userID string, row models.MemoryRow) error
	Forget(ctx context.Context, userID, id string) error
}

type MemoryHandler struct {
	store   *memory.Store
	indexer Indexer
	logger  *slog.Logger
	// briefLimit applies when a brief request names no limit.
	briefLimit int
}

func NewMemoryHandler(store *memory.Store, indexer Indexer, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{store: store, indexer: indexer, logger: logger}
}

// Upsert handles POST /memory/upsert
func (h *MemoryHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Kind != "" && !req.Kind.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	uid := UserIDFrom(r.Context())
	row, err := h.store.Upsert(r.Context(), memory.UpsertInput{
		ID:        req.ID,
		Owner:     uid,
		Kind:      req.Kind,
		Text:      req.Text,
		Timestamp: req.Timestamp,
		Embedding: req.Embedding,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if uid != "" && h.indexer != nil {
		if err := h.indexer.Index(r.Context(), uid, row); err != nil {
			h.logger.Warn("remote index failed", "id", row.ID,
				"error", models.Degraded(models.DependencyRetrieval, err))
		}
	}
	writeJSON(w, http.StatusOK, row)
}

// Delete handles DELETE /memory/{id}. Only the caller's row is removed.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	uid := UserIDFrom(r.Context())
	h.store.Remove(r.Context(), uid, id)

	if uid != "" && h.indexer != nil {
		if err := h.indexer.Forget(r.Context(), uid, id); err != nil {
			h.logger.Warn("remote forget failed", "id", id,
				"error", models.Degraded(models.DependencyRetrieval, err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /memory/search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	results := h.store.SearchTopN(r.Context(), memory.SearchOptions{
		Query:  req.Query,
		Kinds:  req.Kinds,
		TopK:   req.TopK,
		UserID: UserIDFrom(r.Context()),
	})
	writeJSON(w, http.StatusOK, models.SearchResponse{Results: results})
}

// Brief handles POST /memory/brief. The body uid wins over X-User-ID.
func (h *MemoryHandler) Brief(w http.ResponseWriter, r *http.Request) {
	var req models.BriefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	uid := req.UID
	if uid == "" {
		uid = UserIDFrom(r.Context())
	}
	var intent *models.RoutedIntent
	if req.Intent.Label != "" {
		intent = &req.Intent
	}

	brief, err := h.store.GetBrief(r.Context(), uid, intent, req.Query, memory.BriefOptions{
		Limit:         cmp.Or(req.Limit, h.briefLimit),
		CachedPicture: req.CachedOperatingPicture,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}
