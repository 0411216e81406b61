// Package pipeline turns one utterance into a routed intent, an enriched
// payload and a trace.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/embedding"
	"github.com/iammorganparry/clive/apps/understanding/internal/goals"
	"github.com/iammorganparry/clive/apps/understanding/internal/intent"
	"github.com/iammorganparry/clive/apps/understanding/internal/memory"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/personalization"
	"github.com/iammorganparry/clive/apps/understanding/internal/planner"
	"github.com/iammorganparry/clive/apps/understanding/internal/privacy"
	"github.com/iammorganparry/clive/apps/understanding/internal/search"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
	"github.com/iammorganparry/clive/apps/understanding/internal/window"
)

// DefaultKinds are searched when a request names none.
var DefaultKinds = []models.MemoryKind{models.KindEntry, models.KindGoal, models.KindEvent, models.KindPref}

// Tracer records pipeline runs. *telemetry.Log satisfies it.
type Tracer interface {
	Record(ctx context.Context, in telemetry.RecordInput) (string, error)
	Update(ctx context.Context, id string, patch models.TracePatch) error
}

// Deps are the collaborators of a Pipeline. Nil fields get in-memory
// defaults; Goals, Planner and Executor stay disabled when nil.
type Deps struct {
	Window          *window.Window
	Memory          *memory.Store
	Personalization *personalization.Store
	Goals           goals.Provider
	Tracer          Tracer
	Planner         *planner.Planner
	Executor        *planner.Executor
	Thresholds      intent.Thresholds
	// DefaultTopK applies when a request names no topK.
	DefaultTopK int
	// GoalLimit caps loaded goal context; zero means goals.DefaultLimit.
	GoalLimit int
	// RefreshAfter bounds how long a resolved user config is reused.
	RefreshAfter time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Options tune one HandleUtterance call.
type Options struct {
	TopK               int
	KindsOverride      []models.MemoryKind
	UserTimeZone       string
	CoachingSuggestion *models.CoachingSuggestion
	UserConfig         *models.PersonalizationPatch
	// UserID enables remote retrieval and scopes persisted plans.
	UserID string
	// Plan runs the planner and executor after routing.
	Plan bool
}

// Result is everything learned about one utterance.
type Result struct {
	Decision       models.RouteDecision        `json:"decision"`
	RoutedIntent   models.RoutedIntent         `json:"routedIntent"`
	NativeIntent   models.NativeIntent         `json:"nativeIntent"`
	Payload        models.EnrichedPayload      `json:"payload"`
	Redaction      models.RedactionResult      `json:"redaction"`
	ContextRecords []models.ScoredMemoryRecord `json:"contextRecords"`
	// TraceID is empty when the trace could not be recorded.
	TraceID string   `json:"traceId,omitempty"`
	Plan    *Outcome `json:"plan,omitempty"`
}

// Outcome is the planner response and executed action for a result.
type Outcome struct {
	Response models.PlannerResponse `json:"response"`
	Cached   bool                   `json:"cached"`
	Action   *models.ToolResult     `json:"action,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type Pipeline struct {
	window          *window.Window
	memory          *memory.Store
	classifier      *intent.Classifier
	slots           *intent.SlotFiller
	personalization *personalization.Store
	goals           goals.Provider
	tracer          Tracer
	planner         *planner.Planner
	executor        *planner.Executor
	thresholds      intent.Thresholds
	defaultTopK     int
	goalLimit       int
	refreshAfter    time.Duration
	clock           clock.Clock
	logger          *slog.Logger
}

func New(deps Deps) *Pipeline {
	c := clock.OrReal(deps.Clock)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Window == nil {
		deps.Window = window.New(c)
	}
	if deps.Memory == nil {
		deps.Memory = memory.NewStore(memory.Options{Embedder: embedding.NewHashEmbedder(), Clock: c, Logger: logger})
	}
	if deps.Personalization == nil {
		deps.Personalization = personalization.NewStore(nil, c, logger)
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.New(telemetry.Options{Clock: c, Logger: logger})
	}
	if deps.Thresholds == (intent.Thresholds{}) {
		deps.Thresholds = intent.DefaultThresholds
	}
	if deps.GoalLimit <= 0 {
		deps.GoalLimit = goals.DefaultLimit
	}
	if deps.RefreshAfter <= 0 {
		deps.RefreshAfter = personalization.RefreshAfter
	}
	return &Pipeline{
		window:          deps.Window,
		memory:          deps.Memory,
		classifier:      intent.NewClassifier(deps.Window),
		slots:           intent.NewSlotFiller(c),
		personalization: deps.Personalization,
		goals:           deps.Goals,
		tracer:          deps.Tracer,
		planner:         deps.Planner,
		executor:        deps.Executor,
		thresholds:      deps.Thresholds,
		defaultTopK:     deps.DefaultTopK,
		goalLimit:       deps.GoalLimit,
		refreshAfter:    deps.RefreshAfter,
		clock:           c,
		logger:          logger,
	}
}

// Window exposes the context window the classifier reads.
func (p *Pipeline) Window() *window.Window { return p.window }

// Memory exposes the memory store searched for context.
func (p *Pipeline) Memory() *memory.Store { return p.memory }

// HandleUtterance runs retrieval, scoring, classification, slot filling,
// redaction, config resolution, goal loading, routing and tracing for text.
// Only an empty utterance fails; degraded collaborators lower the fidelity
// of the result instead.
func (p *Pipeline) HandleUtterance(ctx context.Context, text string, opts Options) (*Result, error) {
	startedAt := clock.NowMillis(p.clock)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, models.ErrEmptyUtterance
	}

	kinds := opts.KindsOverride
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	topK := opts.TopK
	if topK == 0 {
		topK = p.defaultTopK
	}
	records := p.memory.SearchTopN(ctx, memory.SearchOptions{
		Query:  trimmed,
		Kinds:  kinds,
		TopK:   topK,
		UserID: opts.UserID,
	})
	scored := search.ScoreContextRecords(records, search.ScoreOptions{
		TimeZone: opts.UserTimeZone,
		Coaching: opts.CoachingSuggestion,
		Now:      p.clock.Now(),
	})

	classification := p.classifier.Classify(trimmed, scored)
	native := nativeIntent(classification)
	routed := p.slots.Fill(trimmed, intent.BuildRoutedIntent(native, nil), intent.SlotOptions{TimeZone: opts.UserTimeZone})
	p.window.RecordUserMessage(trimmed)

	redaction := privacy.Mask(trimmed)
	userConfig := p.ensureUserConfig(ctx, opts)

	var goalContext []models.GoalContextItem
	if p.goals != nil && shouldLoadGoals(trimmed, routed, classification) {
		items, err := p.goals.ListActive(ctx, p.goalLimit)
		if err != nil {
			p.logger.Warn("goal context unavailable", "error", models.Degraded(models.DependencyGoalContext, err))
		} else {
			goalContext = items
		}
	}

	snippets := make([]string, len(scored))
	for i, r := range scored {
		snippets[i] = r.Text
	}
	payload := models.EnrichedPayload{
		UserText:           redaction.Masked,
		Intent:             routed,
		ContextSnippets:    snippets,
		UserConfig:         userConfig,
		GoalContext:        goalContext,
		CoachingSuggestion: opts.CoachingSuggestion,
		Classification:     classification.Meta(classification.Label),
	}

	decision := intent.Route(routed, p.thresholds)

	traceID, err := p.tracer.Record(ctx, telemetry.RecordInput{
		MaskedUserText:   redaction.Masked,
		IntentLabel:      routed.Label,
		IntentConfidence: routed.Confidence,
		Decision:         decision,
		Retrieval:        retrievalTrace(scored),
		RedactionSummary: privacy.SummarizeRedactions(redaction.ReplacementMap),
		StartedAt:        startedAt,
	})
	if err != nil {
		p.logger.Warn("trace not recorded", "error", models.Degraded(models.DependencyTelemetry, err))
		traceID = ""
	}

	res := &Result{
		Decision:       decision,
		RoutedIntent:   routed,
		NativeIntent:   native,
		Payload:        payload,
		Redaction:      redaction,
		ContextRecords: scored,
		TraceID:        traceID,
	}
	if opts.Plan {
		res.Plan = p.PlanResult(ctx, res, opts.UserID)
	}

	p.logger.Debug("utterance handled",
		"label", routed.Label,
		"confidence", routed.Confidence,
		"decision", decision.Kind,
		"records", len(scored),
		"trace_id", traceID,
	)
	return res, nil
}

// PlanResult plans and executes the payload of res and patches its trace.
// Nil without a configured planner.
func (p *Pipeline) PlanResult(ctx context.Context, res *Result, userID string) *Outcome {
	if res == nil {
		return nil
	}
	return p.PlanPayload(ctx, res.Payload, userID, res.TraceID)
}

// PlanPayload plans payload, executes the chosen action and, when traceID
// is set, attaches both to the trace. Nil without a configured planner.
func (p *Pipeline) PlanPayload(ctx context.Context, payload models.EnrichedPayload, userID, traceID string) *Outcome {
	if p.planner == nil {
		return nil
	}
	plan, err := p.planner.Plan(ctx, payload)
	if err != nil {
		p.logger.Warn("planning failed", "trace_id", traceID, "error", err)
		return &Outcome{Error: err.Error()}
	}
	out := &Outcome{Response: plan.Response, Cached: plan.Cached}
	patch := models.TracePatch{Planner: &plan.Response}
	if p.executor != nil {
		action, err := p.executor.Execute(ctx, &plan.Response, userID)
		if err != nil {
			p.logger.Warn("action failed", "action", plan.Response.Action, "trace_id", traceID, "error", err)
			out.Error = err.Error()
		} else {
			out.Action = action
			patch.Action = action
		}
	}
	if traceID != "" {
		if err := p.tracer.Update(ctx, traceID, patch); err != nil {
			p.logger.Warn("trace not updated", "trace_id", traceID,
				"error", models.Degraded(models.DependencyTelemetry, err))
		}
	}
	return out
}

// Planning reports whether a planner is configured.
func (p *Pipeline) Planning() bool { return p.planner != nil }

func (p *Pipeline) ensureUserConfig(ctx context.Context, opts Options) models.PersonalizationRuntime {
	if opts.UserConfig != nil {
		return p.personalization.Update(opts.UserID, *opts.UserConfig)
	}
	snapshot := p.personalization.Snapshot(opts.UserID)
	if personalization.StaleAfter(snapshot, p.clock.Now(), p.refreshAfter) {
		return p.personalization.Load(ctx, opts.UserID)
	}
	return snapshot
}

func nativeIntent(c intent.Classification) models.NativeIntent {
	topK := make([]models.Candidate, len(c.TopCandidates))
	for i, tc := range c.TopCandidates {
		topK[i] = models.Candidate{Label: intent.ToNativeLabel(tc.Label), Confidence: tc.Confidence}
	}
	return models.NativeIntent{
		Label:         intent.ToNativeLabel(c.Label),
		Confidence:    c.Confidence,
		Top3:          append([]models.Candidate(nil), topK[:min(3, len(topK))]...),
		TopK:          topK,
		ModelVersion:  intent.ModelVersion,
		MatchedTokens: []models.MatchedTokens{},
		Tokens:        []string{},
	}
}

func shouldLoadGoals(text string, routed models.RoutedIntent, c intent.Classification) bool {
	switch {
	case goals.MentionsGoal(text):
		return true
	case strings.Contains(strings.ToLower(routed.Label), "goal"):
		return true
	case c.Duplicate != nil && strings.Contains(strings.ToLower(string(c.Duplicate.Kind)), "goal"):
		return true
	}
	return strings.EqualFold(c.TargetEntryType, "goal")
}

func retrievalTrace(scored []models.ScoredMemoryRecord) []models.RetrievalTrace {
	out := make([]models.RetrievalTrace, len(scored))
	for i, r := range scored {
		out[i] = models.RetrievalTrace{
			ID:             r.ID,
			Kind:           r.Kind,
			CompositeScore: math.Round(r.CompositeScore*1000) / 1000,
			Scoring:        r.Scoring,
		}
	}
	return out
}

// SummarizeIntent renders "<label> (NN%)" with " → <second> (NN%)" appended
// when a secondary intent exists.
func SummarizeIntent(in models.RoutedIntent) string {
	def, _ := intent.Lookup(in.Label)
	summary := fmt.Sprintf("%s (%d%%)", def.Label, percent(in.Confidence))
	if in.SecondBest != "" && in.SecondConfidence != 0 {
		summary += fmt.Sprintf(" → %s (%d%%)", in.SecondBest, percent(in.SecondConfidence))
	}
	return summary
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
