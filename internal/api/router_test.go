package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
	"github.com/iammorganparry/clive/apps/understanding/internal/planner"
	"github.com/iammorganparry/clive/apps/understanding/internal/store"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	router  http.Handler
	traces  *telemetry.Log
	indexer *recordingIndexer
}

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	forgot  []string
}

func (i *recordingIndexer) Index(_ context.Context, userID string, row models.MemoryRow) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, userID+"/"+row.ID)
	return nil
}

func (i *recordingIndexer) Forget(_ context.Context, userID, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forgot = append(i.forgot, userID+"/"+id)
	return nil
}

type downChecker struct{}

func (downChecker) HealthCheck(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, d Deps) *testServer {
	t.Helper()
	c := clock.NewManual(time.Date(2025, time.November, 5, 10, 0, 0, 0, time.UTC))
	traces := telemetry.New(telemetry.Options{Clock: c})
	p := pipeline.New(pipeline.Deps{
		Tracer:   traces,
		Planner:  planner.New(c, nil),
		Executor: planner.NewExecutor(planner.NewMemorySink(), c),
		Clock:    c,
	})
	indexer := &recordingIndexer{}
	d.Pipeline = p
	d.Traces = traces
	d.Indexer = indexer
	return &testServer{router: NewRouter(d), traces: traces, indexer: indexer}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	t.Run("optional backends disabled", func(t *testing.T) {
		s := newTestServer(t, Deps{})
		rec := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.HealthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "disabled", resp.Ollama.Status)
		assert.Equal(t, "disabled", resp.DB.Status)
	})

	t.Run("failing backend degrades", func(t *testing.T) {
		db, err := store.Open(filepath.Join(t.TempDir(), "health.db"))
		require.NoError(t, err)
		defer db.Close()

		s := newTestServer(t, Deps{DB: db, Qdrant: downChecker{}})
		rec := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[models.HealthResponse](t, rec)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "ok", resp.DB.Status)
		assert.Equal(t, "error", resp.Qdrant.Status)
		assert.Equal(t, "connection refused", resp.Qdrant.Message)
	})
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, Deps{APIKey: "secret"})

	rec := s.do(t, http.MethodGet, "/context", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/context", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUtterance(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodPost, "/agent/utterance", models.UtteranceRequest{Text: "remember to call mom tomorrow"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	res := decode[pipeline.Result](t, rec)
	assert.Contains(t, []models.DecisionKind{models.DecisionCommit, models.DecisionClarify}, res.Decision.Kind)
	assert.Equal(t, "2025-11-06T10:00:00Z", res.RoutedIntent.Slots["ts"])
	assert.NotEmpty(t, res.TraceID)
	assert.Nil(t, res.Plan)

	rec = s.do(t, http.MethodPost, "/agent/utterance", models.UtteranceRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/agent/utterance", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUtteranceWithPlan(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodPost, "/agent/utterance", models.UtteranceRequest{
		Text:    "note that the launch went well",
		Options: models.UtteranceOptions{Plan: true},
	}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[pipeline.Result](t, rec)
	require.NotNil(t, res.Plan)
	assert.Equal(t, models.ActionJournalCreate, res.Plan.Response.Action)

	trace, ok := s.traces.Get(res.TraceID)
	require.True(t, ok)
	require.NotNil(t, trace.Planner)
}

func TestPlanEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{})

	payload := models.EnrichedPayload{
		Intent: models.RoutedIntent{
			Label: "ScheduleCreate",
			Slots: map[string]string{"start": "2025-11-07T15:00:00Z", "end": "2025-11-07T16:00:00Z"},
		},
	}
	rec := s.do(t, http.MethodPost, "/agent/plan", models.PlanRequest{Payload: payload}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[pipeline.Outcome](t, rec)
	assert.Equal(t, models.ActionScheduleCreate, out.Response.Action)
	require.NotNil(t, out.Action)
	assert.Contains(t, out.Action.Payload, "schedule")

	rec = s.do(t, http.MethodPost, "/agent/plan", models.PlanRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryRoutes(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodPost, "/memory/upsert", models.UpsertRequest{ID: "e1", Kind: models.KindEntry, Text: "ran five miles"}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"u1/e1"}, s.indexer.indexed)

	rec = s.do(t, http.MethodPost, "/memory/upsert", models.UpsertRequest{ID: "e2", Kind: "bogus", Text: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/memory/upsert", models.UpsertRequest{Text: "no id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/memory/search", models.SearchRequest{Query: "ran five miles", TopK: 3}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[models.SearchResponse](t, rec)
	require.Len(t, found.Results, 1)
	assert.Equal(t, "e1", found.Results[0].ID)
	assert.Equal(t, "u1", found.Results[0].Owner)

	for _, other := range []string{"u2", ""} {
		var headers []string
		if other != "" {
			headers = []string{UserHeader, other}
		}
		rec = s.do(t, http.MethodPost, "/memory/search", models.SearchRequest{Query: "ran five miles"}, headers...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[models.SearchResponse](t, rec).Results, "u1's row is hidden from %q", other)
	}

	rec = s.do(t, http.MethodDelete, "/memory/e1", nil, UserHeader, "u2")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, "/memory/search", models.SearchRequest{Query: "ran five miles"}, UserHeader, "u1")
	assert.Len(t, decode[models.SearchResponse](t, rec).Results, 1, "another user cannot delete u1's row")

	rec = s.do(t, http.MethodDelete, "/memory/e1", nil, UserHeader, "u1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, s.indexer.forgot, "u1/e1")

	rec = s.do(t, http.MethodPost, "/memory/search", models.SearchRequest{Query: "ran five miles"}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.SearchResponse](t, rec).Results)
}

func TestBrief(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodPost, "/memory/brief", models.BriefRequest{Query: "week"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/memory/brief", models.BriefRequest{Query: "week"}, UserHeader, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	brief := decode[models.Brief](t, rec)
	assert.Equal(t, "UTC", brief.OperatingPicture.CadenceProfile.Timezone)
	assert.Empty(t, brief.RAG)
}

func TestTraceRoutes(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	defer db.Close()

	s := newTestServer(t, Deps{Archive: store.NewTraceStore(db)})
	ctx := context.Background()
	first, err := s.traces.Record(ctx, telemetry.RecordInput{IntentLabel: "EntryCreate"})
	require.NoError(t, err)
	_, err = s.traces.Record(ctx, telemetry.RecordInput{IntentLabel: "Conversational"})
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/traces?label=EntryCreate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[traceListResponse](t, rec)
	require.Len(t, list.Traces, 1)
	assert.Equal(t, first, list.Traces[0].ID)
	assert.Equal(t, "memory", list.Source)

	rec = s.do(t, http.MethodGet, "/traces?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[traceListResponse](t, rec).Traces, 1)

	rec = s.do(t, http.MethodGet, "/traces?source=archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[traceListResponse](t, rec).Traces, "nothing archives without an archive on the log")

	latency := int64(42)
	rec = s.do(t, http.MethodPatch, "/traces/"+first, models.TracePatch{LatencyMs: &latency})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), decode[models.Trace](t, rec).LatencyMs)

	rec = s.do(t, http.MethodGet, "/traces/"+first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EntryCreate", decode[models.Trace](t, rec).IntentLabel)

	rec = s.do(t, http.MethodGet, "/traces/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/traces/missing", models.TracePatch{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContextRoutes(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodGet, "/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[contextResponse](t, rec).Focus)

	rec = s.do(t, http.MethodPost, "/context/register", models.ContextRegisterRequest{EntryID: "e1", EntryType: "journal"})
	require.Equal(t, http.StatusOK, rec.Code)
	focus := decode[contextResponse](t, rec).Focus
	require.NotNil(t, focus)
	assert.True(t, focus.IsActive)
	assert.InDelta(t, 1.0, focus.DecayScore, 1e-9)

	rec = s.do(t, http.MethodPost, "/context/register", models.ContextRegisterRequest{EntryID: "e2", Refresh: true})
	require.Equal(t, http.StatusOK, rec.Code)
	focus = decode[contextResponse](t, rec).Focus
	require.NotNil(t, focus)
	assert.Equal(t, "e2", focus.EntryID)
	assert.Equal(t, "journal", focus.EntryType)

	for range 4 {
		rec = s.do(t, http.MethodPost, "/context/advance", models.ContextAdvanceRequest{})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Nil(t, decode[contextResponse](t, rec).Focus)

	rec = s.do(t, http.MethodPost, "/context/register", models.ContextRegisterRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/context", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIntentRoutes(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := s.do(t, http.MethodPost, "/intent/definition", models.IntentDefinitionRequest{Label: "Entry Append"})
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[definitionResponse](t, rec)
	assert.Equal(t, "entry_append", def.Definition.ID)
	assert.True(t, def.EntryChatAllowed)
	assert.Equal(t, "journal", def.EntryType)

	rec = s.do(t, http.MethodPost, "/intent/definition", models.IntentDefinitionRequest{ID: "command"})
	require.Equal(t, http.StatusOK, rec.Code)
	def = decode[definitionResponse](t, rec)
	assert.Equal(t, "Command", def.Definition.Label)
	assert.False(t, def.EntryChatAllowed)

	rec = s.do(t, http.MethodPost, "/intent/definition", models.IntentDefinitionRequest{Label: "Nope"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown", decode[definitionResponse](t, rec).Definition.ID)

	rec = s.do(t, http.MethodPost, "/intent/summary", models.SummaryRequest{
		Intent: models.RoutedIntent{Label: "EntryCreate", Confidence: 0.9, SecondBest: "EntryAppend", SecondConfidence: 0.62},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Entry Create (90%) → EntryAppend (62%)", decode[summaryResponse](t, rec).Summary)
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
