package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
	"github.com/iammorganparry/clive/apps/understanding/internal/store"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
)

// Deps wires the router. Pipeline and Traces are required; the rest are
// optional backends.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Traces   *telemetry.Log
	Archive  TraceArchive
	Indexer  Indexer
	DB       *store.DB
	Ollama   HealthChecker
	Qdrant   HealthChecker
	APIKey   string
	// BriefLimit is the default /memory/brief limit.
	BriefLimit int
	Logger     *slog.Logger
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(d.DB, d.Ollama, d.Qdrant, d.Pipeline.Memory(), d.Traces)
	agentH := NewAgentHandler(d.Pipeline)
	memoryH := NewMemoryHandler(d.Pipeline.Memory(), d.Indexer, logger)
	memoryH.briefLimit = d.BriefLimit
	traceH := NewTraceHandler(d.Traces, d.Archive)
	contextH := NewContextHandler(d.Pipeline.Window())

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(d.APIKey))
		r.Use(UserExtractor)

		r.Route("/agent", func(r chi.Router) {
			r.Post("/utterance", agentH.Utterance)
			r.Post("/plan", agentH.Plan)
		})

		r.Route("/memory", func(r chi.Router) {
			r.Post("/upsert", memoryH.Upsert)
			r.Post("/search", memoryH.Search)
			r.Post("/brief", memoryH.Brief)
			r.Delete("/{id}", memoryH.Delete)
		})

		r.Route("/traces", func(r chi.Router) {
			r.Get("/", traceH.List)
			r.Get("/{id}", traceH.Get)
			r.Patch("/{id}", traceH.Patch)
		})

		r.Route("/context", func(r chi.Router) {
			r.Get("/", contextH.Get)
			r.Delete("/", contextH.Clear)
			r.Post("/register", contextH.Register)
			r.Post("/advance", contextH.Advance)
		})

		r.Route("/intent", func(r chi.Router) {
			r.Post("/definition", Definition)
			r.Post("/summary", Summary)
		})
	})

	return r
}
