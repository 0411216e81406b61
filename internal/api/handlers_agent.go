package api

import (
	"net/http"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
)

type AgentHandler struct {
	pipeline *pipeline.Pipeline
}

func NewAgentHandler(p *pipeline.Pipeline) *AgentHandler {
	return &AgentHandler{pipeline: p}
}

// Utterance handles POST /agent/utterance
func (h *AgentHandler) Utterance(w http.ResponseWriter, r *http.Request) {
	var req models.UtteranceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.pipeline.HandleUtterance(r.Context(), req.Text, pipeline.Options{
		TopK:               req.Options.TopK,
		KindsOverride:      req.Options.KindsOverride,
		UserTimeZone:       req.Options.UserTimeZone,
		CoachingSuggestion: req.Options.CoachingSuggestion,
		UserConfig:         req.Options.UserConfig,
		UserID:             UserIDFrom(r.Context()),
		Plan:               req.Options.Plan,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Plan handles POST /agent/plan
func (h *AgentHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.Planning() {
		writeError(w, http.StatusServiceUnavailable, "planner disabled")
		return
	}
	var req models.PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Payload.Intent.Label == "" {
		writeError(w, http.StatusBadRequest, "payload.intent.label is required")
		return
	}

	out := h.pipeline.PlanPayload(r.Context(), req.Payload, UserIDFrom(r.Context()), req.TraceID)
	writeJSON(w, http.StatusOK, out)
}
