// Package telemetry keeps a bounded, newest-first log of pipeline traces.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// MaxTraces is the default number of traces kept in memory.
const MaxTraces = 100

// Archive receives every recorded or updated trace. store.TraceStore
// implements it.
type Archive interface {
	SaveTrace(ctx context.Context, t models.Trace) error
}

// RecordInput is what the pipeline knows about a finished run.
type RecordInput struct {
	MaskedUserText   string
	IntentLabel      string
	IntentConfidence float64
	Decision         models.RouteDecision
	Retrieval        []models.RetrievalTrace
	RedactionSummary map[string]int
	// StartedAt is the run start in ms; zero means now.
	StartedAt int64
}

// Log holds traces newest first. Insertion order decides which is newest.
type Log struct {
	mu     sync.Mutex
	traces []models.Trace
	max    int

	clock   clock.Clock
	archive Archive
	logger  *slog.Logger
}

// Options configures a Log. All fields are optional.
type Options struct {
	Max     int
	Clock   clock.Clock
	Archive Archive
	Logger  *slog.Logger
}

func New(opts Options) *Log {
	if opts.Max <= 0 {
		opts.Max = MaxTraces
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Log{
		max:     opts.Max,
		clock:   clock.OrReal(opts.Clock),
		archive: opts.Archive,
		logger:  opts.Logger,
	}
}

// Record stores a new trace and returns its id. Insert and trim happen in
// one critical section.
func (l *Log) Record(ctx context.Context, in RecordInput) (string, error) {
	now := clock.NowMillis(l.clock)
	started := in.StartedAt
	if started == 0 {
		started = now
	}
	retrieval := in.Retrieval
	if retrieval == nil {
		retrieval = []models.RetrievalTrace{}
	}
	summary := in.RedactionSummary
	if summary == nil {
		summary = map[string]int{}
	}
	trace := models.Trace{
		ID:               uuid.NewString(),
		Timestamp:        now,
		MaskedUserText:   in.MaskedUserText,
		IntentLabel:      in.IntentLabel,
		IntentConfidence: in.IntentConfidence,
		Decision:         in.Decision,
		Retrieval:        retrieval,
		RedactionSummary: summary,
		LatencyMs:        now - started,
	}

	l.mu.Lock()
	next := make([]models.Trace, 0, min(len(l.traces)+1, l.max))
	next = append(next, trace)
	for _, t := range l.traces {
		if len(next) == l.max {
			break
		}
		next = append(next, t)
	}
	l.traces = next
	l.mu.Unlock()

	l.archiveTrace(ctx, trace)
	return trace.ID, nil
}

// Update merges the non-nil fields of patch into trace id. Unknown ids are
// a no-op.
func (l *Log) Update(ctx context.Context, id string, patch models.TracePatch) error {
	var (
		merged models.Trace
		found  bool
	)
	l.mu.Lock()
	for i := range l.traces {
		if l.traces[i].ID != id {
			continue
		}
		if patch.Planner != nil {
			l.traces[i].Planner = patch.Planner
		}
		if patch.Action != nil {
			l.traces[i].Action = patch.Action
		}
		if patch.LatencyMs != nil {
			l.traces[i].LatencyMs = *patch.LatencyMs
		}
		merged, found = l.traces[i], true
		break
	}
	l.mu.Unlock()

	if found {
		l.archiveTrace(ctx, merged)
	}
	return nil
}

// List returns up to limit traces, newest first. limit <= 0 returns all.
func (l *Log) List(limit int) []models.Trace {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.traces)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]models.Trace(nil), l.traces[:n]...)
}

// Get returns the trace with id.
func (l *Log) Get(id string) (models.Trace, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.traces {
		if t.ID == id {
			return t, true
		}
	}
	return models.Trace{}, false
}

// Len returns the number of traces held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.traces)
}

func (l *Log) archiveTrace(ctx context.Context, t models.Trace) {
	if l.archive == nil {
		return
	}
	if err := l.archive.SaveTrace(ctx, t); err != nil {
		l.logger.Warn("trace archive failed", "trace_id", t.ID,
			"error", models.Degraded(models.DependencyTelemetry, err))
	}
}
