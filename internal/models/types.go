package models

// Candidate is one ranked intent label.
type Candidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// MatchedTokens lists the tokens that supported a candidate label.
type MatchedTokens struct {
	Label  string   `json:"label"`
	Tokens []string `json:"tokens"`
}

// NativeIntent is the classifier output translated to display labels,
// before routing normalisation.
type NativeIntent struct {
	Label         string          `json:"label"`
	Confidence    float64         `json:"confidence"`
	Top3          []Candidate     `json:"top3"`
	TopK          []Candidate     `json:"topK"`
	ModelVersion  string          `json:"modelVersion,omitempty"`
	MatchedTokens []MatchedTokens `json:"matchedTokens"`
	Tokens        []string        `json:"tokens"`
}

// RoutedIntent is the canonical, slot-filled classification for an utterance.
// An empty SecondBest means no distinct secondary label was found.
type RoutedIntent struct {
	Label            string            `json:"label"`
	RawLabel         string            `json:"rawLabel"`
	Confidence       float64           `json:"confidence"`
	SecondBest       string            `json:"secondBest,omitempty"`
	SecondConfidence float64           `json:"secondConfidence,omitempty"`
	Slots            map[string]string `json:"slots"`
	TopK             []Candidate       `json:"topK"`
	MatchedTokens    []MatchedTokens   `json:"matchedTokens,omitempty"`
	ModelVersion     string            `json:"modelVersion,omitempty"`
	Tokens           []string          `json:"tokens,omitempty"`
}

// WithSlots returns a copy of the intent carrying the given slots.
func (r RoutedIntent) WithSlots(slots map[string]string) RoutedIntent {
	r.Slots = slots
	r.TopK = append([]Candidate(nil), r.TopK...)
	r.MatchedTokens = append([]MatchedTokens(nil), r.MatchedTokens...)
	return r
}

// DecisionKind tags the RouteDecision variant.
type DecisionKind string

const (
	DecisionCommit   DecisionKind = "commit"
	DecisionClarify  DecisionKind = "clarify"
	DecisionFallback DecisionKind = "fallback"
)

// RouteDecision is commit (Primary, optional MaybeSecondary), clarify
// (Question) or fallback (no fields).
type RouteDecision struct {
	Kind           DecisionKind `json:"kind"`
	Primary        string       `json:"primary,omitempty"`
	MaybeSecondary string       `json:"maybeSecondary,omitempty"`
	Question       string       `json:"question,omitempty"`
}

// Duplicate is the high-similarity memory match found during classification.
type Duplicate struct {
	ID    string     `json:"id"`
	Score float64    `json:"score"`
	Text  string     `json:"text"`
	Kind  MemoryKind `json:"kind"`
}

// ClassificationMeta is the explainable classifier output attached to a payload.
type ClassificationMeta struct {
	ID              string      `json:"id"`
	Label           string      `json:"label"`
	Confidence      float64     `json:"confidence"`
	Reasons         []string    `json:"reasons"`
	TargetEntryID   string      `json:"targetEntryId,omitempty"`
	TargetEntryType string      `json:"targetEntryType,omitempty"`
	DuplicateMatch  *Duplicate  `json:"duplicateMatch,omitempty"`
	TopCandidates   []Candidate `json:"topCandidates"`
}

// CoachingSuggestion nudges context scoring towards a kind of record.
type CoachingSuggestion struct {
	Type string `json:"type"`
}

// EnrichedPayload is everything downstream planning needs about one utterance.
type EnrichedPayload struct {
	UserText           string                 `json:"userText"`
	Intent             RoutedIntent           `json:"intent"`
	ContextSnippets    []string               `json:"contextSnippets"`
	UserConfig         PersonalizationRuntime `json:"userConfig"`
	GoalContext        []GoalContextItem      `json:"goalContext,omitempty"`
	CoachingSuggestion *CoachingSuggestion    `json:"coachingSuggestion,omitempty"`
	Classification     *ClassificationMeta    `json:"classification,omitempty"`
}

// RedactionResult holds masked text and the only copy of the original PII.
type RedactionResult struct {
	Masked         string            `json:"masked"`
	ReplacementMap map[string]string `json:"replacementMap"`
}

// Action names understood by the planner and the tool executor.
const (
	ActionJournalCreate  = "journal.create"
	ActionGoalCreate     = "goal.create"
	ActionScheduleCreate = "schedule.create"
	ActionReflect        = "reflect"
	ActionSettingsUpdate = "settings.update"
	ActionNoop           = "noop"
)

var ValidActions = map[string]bool{
	ActionJournalCreate:  true,
	ActionGoalCreate:     true,
	ActionScheduleCreate: true,
	ActionReflect:        true,
	ActionSettingsUpdate: true,
	ActionNoop:           true,
}

// PlannerResponse is the structured tool call selected by the planner.
type PlannerResponse struct {
	Action  string         `json:"action"`
	Ask     *string        `json:"ask"`
	Payload map[string]any `json:"payload"`
}

// ToolResult is the outcome of executing a planner response.
type ToolResult struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// RetrievalTrace is the per-record scoring summary kept in a trace.
type RetrievalTrace struct {
	ID             string         `json:"id"`
	Kind           MemoryKind     `json:"kind"`
	CompositeScore float64        `json:"compositeScore"`
	Scoring        ScoreBreakdown `json:"scoring"`
}

// Trace correlates one pipeline run for later inspection.
type Trace struct {
	ID               string           `json:"id"`
	Timestamp        int64            `json:"ts"`
	MaskedUserText   string           `json:"maskedUserText"`
	IntentLabel      string           `json:"intentLabel"`
	IntentConfidence float64          `json:"intentConfidence"`
	Decision         RouteDecision    `json:"decision"`
	Retrieval        []RetrievalTrace `json:"retrieval"`
	RedactionSummary map[string]int   `json:"redactionSummary"`
	LatencyMs        int64            `json:"latencyMs"`
	Planner          *PlannerResponse `json:"planner"`
	Action           *ToolResult      `json:"action"`
}

// TracePatch is merged into an existing trace; nil fields are left alone.
type TracePatch struct {
	Planner   *PlannerResponse `json:"planner,omitempty"`
	Action    *ToolResult      `json:"action,omitempty"`
	LatencyMs *int64           `json:"latencyMs,omitempty"`
}

// --- API request/response types ---

// UtteranceRequest is the payload for POST /agent/utterance.
type UtteranceRequest struct {
	Text    string           `json:"text"`
	Options UtteranceOptions `json:"options"`
}

// UtteranceOptions mirrors the pipeline options over the wire.
type UtteranceOptions struct {
	TopK               int                   `json:"topK,omitempty"`
	KindsOverride      []MemoryKind          `json:"kindsOverride,omitempty"`
	UserTimeZone       string                `json:"userTimeZone,omitempty"`
	CoachingSuggestion *CoachingSuggestion   `json:"coachingSuggestion,omitempty"`
	UserConfig         *PersonalizationPatch `json:"userConfig,omitempty"`
	Plan               bool                  `json:"plan,omitempty"`
}

// PlanRequest is the payload for POST /agent/plan.
type PlanRequest struct {
	Payload EnrichedPayload `json:"payload"`
	TraceID string          `json:"traceId,omitempty"`
}

// SummaryRequest is the payload for POST /intent/summary.
type SummaryRequest struct {
	Intent RoutedIntent `json:"intent"`
}

// UpsertRequest is the payload for POST /memory/upsert.
type UpsertRequest struct {
	ID        string     `json:"id"`
	Kind      MemoryKind `json:"kind"`
	Text      string     `json:"text"`
	Timestamp int64      `json:"ts,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"`
}

// SearchRequest is the payload for POST /memory/search.
type SearchRequest struct {
	Query string       `json:"query"`
	Kinds []MemoryKind `json:"kinds"`
	TopK  int          `json:"topK"`
}

// SearchResponse is returned from POST /memory/search.
type SearchResponse struct {
	Results []MemoryRecord `json:"results"`
}

// BriefRequest is the payload for POST /memory/brief.
type BriefRequest struct {
	UID                    string            `json:"uid"`
	Intent                 RoutedIntent      `json:"intent"`
	Query                  string            `json:"query"`
	Limit                  int               `json:"limit,omitempty"`
	CachedOperatingPicture *OperatingPicture `json:"cachedOperatingPicture,omitempty"`
}

// ContextRegisterRequest is the payload for POST /context/register.
type ContextRegisterRequest struct {
	EntryID   string `json:"entryId"`
	EntryType string `json:"entryType"`
	Refresh   bool   `json:"refresh"`
}

// ContextAdvanceRequest is the payload for POST /context/advance.
type ContextAdvanceRequest struct {
	CreatedEntry bool `json:"createdEntry"`
}

// IntentDefinitionRequest is the payload for POST /intent/definition.
type IntentDefinitionRequest struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Ollama      ServiceCheck `json:"ollama"`
	Qdrant      ServiceCheck `json:"qdrant"`
	DB          ServiceCheck `json:"db"`
	MemoryCount int          `json:"memoryCount"`
	TraceCount  int          `json:"traceCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
