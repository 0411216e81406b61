package api

import (
	"net/http"

	"github.com/iammorganparry/clive/apps/understanding/internal/intent"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
)

type definitionResponse struct {
	Definition       intent.Definition `json:"definition"`
	EntryChatAllowed bool              `json:"entryChatAllowed"`
	EntryType        string            `json:"entryType,omitempty"`
}

// Definition handles POST /intent/definition. A known id wins over the
// label; unknown input yields the conversational defaults.
func Definition(w http.ResponseWriter, r *http.Request) {
	var req models.IntentDefinitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	def, ok := intent.ByID(req.ID)
	if !ok {
		def, _ = intent.Lookup(req.Label)
	}
	writeJSON(w, http.StatusOK, definitionResponse{
		Definition:       def,
		EntryChatAllowed: def.AllowedInEntryChat,
		EntryType:        def.EntryType,
	})
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Summary handles POST /intent/summary
func Summary(w http.ResponseWriter, r *http.Request) {
	var req models.SummaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Intent.Label == "" {
		writeError(w, http.StatusBadRequest, "intent.label is required")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: pipeline.SummarizeIntent(req.Intent)})
}
