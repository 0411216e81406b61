package models

// MemoryKind classifies what a cached memory row represents.
type MemoryKind string

const (
	KindEntry    MemoryKind = "entry"
	KindGoal     MemoryKind = "goal"
	KindEvent    MemoryKind = "event"
	KindPref     MemoryKind = "pref"
	KindSchedule MemoryKind = "schedule"
)

var ValidMemoryKinds = map[MemoryKind]bool{
	KindEntry:    true,
	KindGoal:     true,
	KindEvent:    true,
	KindPref:     true,
	KindSchedule: true,
}

func (k MemoryKind) IsValid() bool {
	return ValidMemoryKinds[k]
}

// MemoryRow is a single cached memory with a unit-length embedding.
type MemoryRow struct {
	ID string `json:"id"`
	// Owner is the user the row belongs to; empty rows are shared.
	Owner     string     `json:"owner,omitempty"`
	Kind      MemoryKind `json:"kind"`
	Text      string     `json:"text"`
	Timestamp int64      `json:"ts"`
	Embedding []float32  `json:"-"`
}

// MemoryRecord is a row scored against a query, either by cosine similarity
// or by the relevance reported by remote retrieval.
type MemoryRecord struct {
	MemoryRow
	Score float64 `json:"score"`
}

// ScoreBreakdown holds the sub-scores that make up a composite score.
type ScoreBreakdown struct {
	Recency      float64 `json:"recency"`
	Priority     float64 `json:"priority"`
	Semantic     float64 `json:"semantic"`
	Affect       float64 `json:"affect"`
	Relationship float64 `json:"relationship"`
	TimeOfDay    float64 `json:"timeOfDay"`
	Coaching     float64 `json:"coaching"`
}

// ScoredMemoryRecord is computed per request and never persisted.
type ScoredMemoryRecord struct {
	MemoryRecord
	CompositeScore float64        `json:"compositeScore"`
	Scoring        ScoreBreakdown `json:"scoring"`
}

// RagScope is the retrieval scope understood by remote retrieval.
type RagScope string

const (
	ScopeEntry    RagScope = "entry"
	ScopeGoal     RagScope = "goal"
	ScopeSchedule RagScope = "schedule"
)

// AllScopes is used when no narrower scope can be inferred.
var AllScopes = []RagScope{ScopeEntry, ScopeGoal, ScopeSchedule}

// Snippet is one ranked result returned by remote retrieval.
type Snippet struct {
	ID       string         `json:"id"`
	Kind     MemoryKind     `json:"kind"`
	Score    float64        `json:"score"`
	Title    string         `json:"title,omitempty"`
	Snippet  string         `json:"snippet"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CadenceProfile summarises how often the user checks in.
type CadenceProfile struct {
	Cadence              string `json:"cadence"`
	SessionLengthMinutes int    `json:"session_length_minutes"`
	LastMessageAt        *int64 `json:"last_message_at"`
	MissedDayCount       int    `json:"missed_day_count"`
	CurrentStreak        int    `json:"current_streak"`
	Timezone             string `json:"timezone"`
}

// OperatingPicture is the per-user state snapshot attached to a brief.
type OperatingPicture struct {
	WhyModel       *string          `json:"why_model"`
	TopGoals       []map[string]any `json:"top_goals"`
	HotEntries     []map[string]any `json:"hot_entries"`
	Next72h        []map[string]any `json:"next_72h"`
	CadenceProfile CadenceProfile   `json:"cadence_profile"`
	RiskFlags      []string         `json:"risk_flags"`
}

// DefaultOperatingPicture is used when no snapshot can be fetched.
func DefaultOperatingPicture() OperatingPicture {
	return OperatingPicture{
		TopGoals:   []map[string]any{},
		HotEntries: []map[string]any{},
		Next72h:    []map[string]any{},
		CadenceProfile: CadenceProfile{
			Cadence:              "none",
			SessionLengthMinutes: 25,
			Timezone:             "UTC",
		},
		RiskFlags: []string{},
	}
}

// Brief bundles the operating picture with scoped retrieval results.
type Brief struct {
	OperatingPicture OperatingPicture `json:"operatingPicture"`
	RAG              []Snippet        `json:"rag"`
	MemoryRecords    []MemoryRecord   `json:"memoryRecords"`
}

// EmbeddingCacheEntry stores a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string `json:"contentHash"`
	Embedding   []byte `json:"embedding"`
	Dimension   int    `json:"dimension"`
	Model       string `json:"model"`
	UpdatedAt   int64  `json:"updatedAt"`
}
