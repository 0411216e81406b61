package api

import (
	"context"
	"net/http"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/memory"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/store"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
)

const healthTimeout = 3 * time.Second

// HealthChecker is an optional backend probed by GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db     *store.DB
	ollama HealthChecker
	qdrant HealthChecker
	memory *memory.Store
	traces *telemetry.Log
}

func NewHealthHandler(db *store.DB, ollama, qdrant HealthChecker, mem *memory.Store, traces *telemetry.Log) *HealthHandler {
	return &HealthHandler{db: db, ollama: ollama, qdrant: qdrant, memory: mem, traces: traces}
}

// Health handles GET /health. Unconfigured backends report "disabled" and
// do not degrade the status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := models.HealthResponse{Status: "ok"}
	check := func(c HealthChecker) models.ServiceCheck {
		if c == nil {
			return models.ServiceCheck{Status: "disabled"}
		}
		if err := c.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			return models.ServiceCheck{Status: "error", Message: err.Error()}
		}
		return models.ServiceCheck{Status: "ok"}
	}
	resp.Ollama = check(h.ollama)
	resp.Qdrant = check(h.qdrant)

	if h.db == nil {
		resp.DB = models.ServiceCheck{Status: "disabled"}
	} else if _, err := h.db.RowCount(ctx); err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
	}

	if h.memory != nil {
		resp.MemoryCount = h.memory.Len()
	}
	if h.traces != nil {
		resp.TraceCount = h.traces.Len()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
