package search

import (
	"math"
	"sort"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// Composite weights. They sum to 1.
const (
	weightRecency      = 0.30
	weightPriority     = 0.25
	weightSemantic     = 0.15
	weightAffect       = 0.10
	weightRelationship = 0.10
	weightTimeOfDay    = 0.05
	weightCoaching     = 0.05

	neutralAffect = 0.5
	defaultWeight = 0.4
)

var priorityByKind = map[models.MemoryKind]float64{
	models.KindGoal:     1,
	models.KindSchedule: 0.75,
	models.KindEntry:    0.55,
	models.KindEvent:    0.45,
	models.KindPref:     0.35,
}

var relationshipByKind = map[models.MemoryKind]float64{
	models.KindGoal:     0.85,
	models.KindSchedule: 0.7,
	models.KindEntry:    0.5,
	models.KindEvent:    0.4,
	models.KindPref:     0.35,
}

// ScoreOptions tunes the contextual signals of ScoreContextRecords.
type ScoreOptions struct {
	// TimeZone enables the time-of-day signal when it names a loadable zone.
	TimeZone string
	Coaching *models.CoachingSuggestion
	// Now defaults to time.Now.
	Now time.Time
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func logistic(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// PriorityWeight returns the fixed priority weight for a memory kind.
func PriorityWeight(kind models.MemoryKind) float64 {
	if w, ok := priorityByKind[kind]; ok {
		return w
	}
	return defaultWeight
}

// RelationshipWeight returns the fixed relationship weight for a memory kind.
func RelationshipWeight(kind models.MemoryKind) float64 {
	if w, ok := relationshipByKind[kind]; ok {
		return w
	}
	return defaultWeight
}

// ScoreContextRecords ranks records by a weighted blend of batch-relative
// recency, kind priority, semantic score and contextual fit. The sort is
// stable so equal composites keep input order.
func ScoreContextRecords(records []models.MemoryRecord, opts ScoreOptions) []models.ScoredMemoryRecord {
	if len(records) == 0 {
		return []models.ScoredMemoryRecord{}
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var mean float64
	for _, r := range records {
		mean += float64(r.Timestamp)
	}
	mean /= float64(len(records))
	var variance float64
	for _, r := range records {
		d := float64(r.Timestamp) - mean
		variance += d * d
	}
	variance /= float64(len(records))
	std := math.Sqrt(variance)
	if std == 0 {
		std = 1
	}

	var loc *time.Location
	if opts.TimeZone != "" {
		if l, err := time.LoadLocation(opts.TimeZone); err == nil {
			loc = l
		}
	}

	scored := make([]models.ScoredMemoryRecord, 0, len(records))
	for _, r := range records {
		recency := logistic((float64(r.Timestamp) - mean) / std)
		priority := PriorityWeight(r.Kind)
		semantic := Clamp01((r.Score + 1) / 2)
		relationship := RelationshipWeight(r.Kind)
		timeOfDay := Clamp01(timeOfDayFit(r.Timestamp, now, loc))
		coaching := Clamp01(coachingFit(r.Kind, opts.Coaching))

		composite := weightRecency*recency +
			weightPriority*priority +
			weightSemantic*semantic +
			weightAffect*neutralAffect +
			weightRelationship*relationship +
			weightTimeOfDay*timeOfDay +
			weightCoaching*coaching

		scored = append(scored, models.ScoredMemoryRecord{
			MemoryRecord:   r,
			CompositeScore: composite,
			Scoring: models.ScoreBreakdown{
				Recency:      round3(recency),
				Priority:     round3(priority),
				Semantic:     round3(semantic),
				Affect:       round3(neutralAffect),
				Relationship: round3(relationship),
				TimeOfDay:    round3(timeOfDay),
				Coaching:     round3(coaching),
			},
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].CompositeScore > scored[j].CompositeScore
	})
	return scored
}

// timeOfDayFit compares the record hour with the current hour on a 24h
// circle. Without a location it is neutral.
func timeOfDayFit(ts int64, now time.Time, loc *time.Location) float64 {
	if loc == nil {
		return 0.5
	}
	recordHour := time.UnixMilli(ts).In(loc).Hour()
	nowHour := now.In(loc).Hour()
	diff := recordHour - nowHour
	if diff < 0 {
		diff = -diff
	}
	diff = min(diff, 24-diff)
	return math.Max(0, 1-float64(diff)/12)
}

func coachingFit(kind models.MemoryKind, suggestion *models.CoachingSuggestion) float64 {
	if suggestion == nil || suggestion.Type == "" {
		return 0.5
	}
	switch suggestion.Type {
	case "goal_check":
		if kind == models.KindGoal {
			return 1
		}
		return 0.35
	case "reflection":
		if kind == models.KindEntry {
			return 1
		}
		return 0.35
	default:
		return 0.6
	}
}
