// Package intent turns an utterance into a routed, slot-filled intent: a
// heuristic rule cascade, a confidence router and a temporal slot filler.
package intent

import (
	"regexp"
	"strings"

	"github.com/iammorganparry/clive/apps/understanding/internal/memory"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/window"
)

// ModelVersion tags intents produced by this classifier.
const ModelVersion = "riflett-heuristic-2025-11-07"

// DuplicatePrefixLength is how much of a duplicate's text must reappear in
// a recent message before a follow-up is treated as an append.
const DuplicatePrefixLength = 20

var (
	searchPhrases   = []string{"find", "show me", "search for", "when did i", "where did i", "what did i write", "look up", "list"}
	additivePhrases = []string{"also", "update", "another", "forgot", "in addition", "plus", "adding", "one more thing"}
	savePhrases     = []string{"save", "log", "capture", "remember", "write this down", "note that", "journal", "record"}
	temporalMarkers = []string{
		"today", "tonight", "this morning", "this afternoon", "this evening", "yesterday",
		"earlier", "just now", "right now", "tomorrow",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	}
	actionVerbs = []string{
		"finished", "completed", "did", "ran", "talked", "spoke", "met", "decided", "started",
		"launched", "sent", "emailed", "called", "worked", "wrote", "built", "shipped",
	}

	commandPattern = regexp.MustCompile(`^\s*/`)
	pronounAnchors = regexp.MustCompile(`(?i)\b(it|this|that|the goal|the entry|that goal|this entry|that plan|the plan|that project|this project)\b`)
	clockTime      = regexp.MustCompile(`(?i)\b(\d{1,2}(:\d{2})?\s?(am|pm))\b`)
)

// ContextSource is the read side of the context window.
type ContextSource interface {
	Snapshot() (window.Snapshot, bool)
	Recent() []window.RecentMessage
}

// Classification is the explainable result of the rule cascade.
type Classification struct {
	Label           string
	Confidence      float64
	Reasons         []string
	TopCandidates   []models.Candidate
	TargetEntryID   string
	TargetEntryType string
	Duplicate       *models.Duplicate
}

// Meta converts the classification into the payload form with display labels.
func (c Classification) Meta(id string) *models.ClassificationMeta {
	top := make([]models.Candidate, len(c.TopCandidates))
	for i, tc := range c.TopCandidates {
		top[i] = models.Candidate{Label: ToNativeLabel(tc.Label), Confidence: tc.Confidence}
	}
	return &models.ClassificationMeta{
		ID:              id,
		Label:           ToNativeLabel(c.Label),
		Confidence:      c.Confidence,
		Reasons:         append([]string(nil), c.Reasons...),
		TargetEntryID:   c.TargetEntryID,
		TargetEntryType: c.TargetEntryType,
		DuplicateMatch:  c.Duplicate,
		TopCandidates:   top,
	}
}

// Classifier runs the rule cascade against the context window.
type Classifier struct {
	context ContextSource
}

// NewClassifier returns a Classifier. A nil source behaves as an empty window.
func NewClassifier(source ContextSource) *Classifier {
	return &Classifier{context: source}
}

type signals struct {
	trimmed  string
	lower    string
	snapshot window.Snapshot
	hasFocus bool
	recent   []window.RecentMessage
	dup      *models.Duplicate
}

func (s signals) inWindow() bool {
	return s.hasFocus && s.snapshot.IsActive
}

// Classify labels text. Rules are evaluated in a fixed order and the first
// match wins; records must already be ranked best first.
func (c *Classifier) Classify(text string, records []models.ScoredMemoryRecord) Classification {
	sig := signals{trimmed: strings.TrimSpace(text)}
	sig.lower = strings.ToLower(sig.trimmed)
	if c.context != nil {
		sig.snapshot, sig.hasFocus = c.context.Snapshot()
		sig.recent = c.context.Recent()
	}

	if sig.trimmed == "" {
		return Classification{
			Label:         LabelConversational,
			Confidence:    0.6,
			Reasons:       []string{"Empty message defaults to conversational"},
			TopCandidates: []models.Candidate{cand(LabelConversational, 0.6)},
		}
	}

	if commandPattern.MatchString(sig.trimmed) {
		return Classification{
			Label:         LabelCommand,
			Confidence:    0.99,
			Reasons:       []string{"Slash-prefixed command detected"},
			TopCandidates: []models.Candidate{cand(LabelCommand, 0.99)},
		}
	}

	if containsAny(sig.lower, searchPhrases) {
		conf := 0.9
		if len(sig.lower) > 24 {
			conf = 0.94
		}
		return Classification{
			Label:         LabelSearchQuery,
			Confidence:    conf,
			Reasons:       []string{"Search verb detected"},
			TopCandidates: []models.Candidate{cand(LabelSearchQuery, conf), cand(LabelConversational, 0.7)},
		}
	}

	sig.dup = memory.FindDuplicate(records, memory.DuplicateThreshold)
	return c.classifyWithContext(sig)
}

func (c *Classifier) classifyWithContext(sig signals) Classification {
	var reasons []string
	dup := sig.dup
	additive := containsAny(sig.lower, additivePhrases)

	if dup != nil && additive {
		return Classification{
			Label:           LabelEntryAppend,
			Confidence:      0.91,
			Reasons:         append(reasons, "High-similarity memory match with additive language"),
			TargetEntryID:   dup.ID,
			TargetEntryType: EntryTypeForKind(string(dup.Kind)),
			Duplicate:       dup,
			TopCandidates:   []models.Candidate{cand(LabelEntryAppend, 0.91), cand(LabelEntryDiscuss, 0.8), cand(LabelEntryCreate, 0.6)},
		}
	}

	if sig.inWindow() && pronounAnchors.MatchString(sig.trimmed) {
		appendConf := 0.7
		if additive {
			appendConf = 0.82
		}
		return Classification{
			Label:           LabelEntryDiscuss,
			Confidence:      0.96,
			Reasons:         append(reasons, "Within entry context window with pronoun reference"),
			TargetEntryID:   sig.snapshot.EntryID,
			TargetEntryType: sig.snapshot.EntryType,
			Duplicate:       dup,
			TopCandidates:   []models.Candidate{cand(LabelEntryDiscuss, 0.96), cand(LabelEntryAppend, appendConf), cand(LabelEntryCreate, 0.6)},
		}
	}

	if dup != nil {
		reasons = append(reasons, "High-similarity memory match without clear additive cue")
	}

	save := containsAny(sig.lower, savePhrases)
	temporal := containsAny(sig.lower, temporalMarkers) || clockTime.MatchString(sig.lower)
	action := containsAny(sig.lower, actionVerbs)
	question := strings.Contains(sig.trimmed, "?")
	words := len(strings.Fields(sig.trimmed))

	if !question && (save || (temporal && action) || words > 25) {
		conf := 0.86
		if save {
			conf += 0.08
		}
		if temporal {
			conf += 0.03
		}
		if words > 60 {
			conf += 0.03
		}
		conf = min(conf, 0.97)

		reasons = append(reasons, "Declarative content suitable for structured capture")
		if save {
			reasons = append(reasons, "Explicit save/log intent detected")
		}
		if temporal {
			reasons = append(reasons, "Temporal marker detected")
		}
		if action {
			reasons = append(reasons, "Concrete action verb detected")
		}
		appendConf := 0.62
		if dup != nil {
			appendConf = 0.78
		}
		return Classification{
			Label:         LabelEntryCreate,
			Confidence:    conf,
			Reasons:       reasons,
			Duplicate:     dup,
			TopCandidates: []models.Candidate{cand(LabelEntryCreate, conf), cand(LabelEntryAppend, appendConf), cand(LabelConversational, 0.6)},
		}
	}

	// Shadowed by the first append rule; the cascade keeps its order.
	if additive && dup != nil {
		return Classification{
			Label:           LabelEntryAppend,
			Confidence:      0.88,
			Reasons:         append(reasons, "Additive phrasing referencing prior context"),
			TargetEntryID:   dup.ID,
			TargetEntryType: EntryTypeForKind(string(dup.Kind)),
			Duplicate:       dup,
			TopCandidates:   []models.Candidate{cand(LabelEntryAppend, 0.88), cand(LabelEntryDiscuss, 0.72), cand(LabelConversational, 0.65)},
		}
	}

	if sig.inWindow() && !question {
		return Classification{
			Label:           LabelEntryDiscuss,
			Confidence:      0.78,
			Reasons:         append(reasons, "Context window active; defaulting follow-up to discuss"),
			TargetEntryID:   sig.snapshot.EntryID,
			TargetEntryType: sig.snapshot.EntryType,
			Duplicate:       dup,
			TopCandidates:   []models.Candidate{cand(LabelEntryDiscuss, 0.78), cand(LabelEntryCreate, 0.6), cand(LabelConversational, 0.58)},
		}
	}

	if dup != nil && recentlyMentioned(dup.Text, sig.recent) {
		return Classification{
			Label:           LabelEntryAppend,
			Confidence:      0.8,
			Reasons:         append(reasons, "Recent message references similar content; favour append"),
			TargetEntryID:   dup.ID,
			TargetEntryType: EntryTypeForKind(string(dup.Kind)),
			Duplicate:       dup,
			TopCandidates:   []models.Candidate{cand(LabelEntryAppend, 0.8), cand(LabelEntryDiscuss, 0.7), cand(LabelConversational, 0.65)},
		}
	}

	conf, searchConf := 0.82, 0.4
	reason := "Defaulting to reflective conversational mode"
	if question {
		conf, searchConf = 0.9, 0.58
		reason = "Question format leaning conversational"
	}
	out := Classification{
		Label:         LabelConversational,
		Confidence:    conf,
		Reasons:       append(reasons, reason),
		Duplicate:     dup,
		TopCandidates: []models.Candidate{cand(LabelConversational, conf), cand(LabelSearchQuery, searchConf), cand(LabelEntryCreate, 0.35)},
	}
	if sig.hasFocus {
		out.TargetEntryType = sig.snapshot.EntryType
		if sig.snapshot.IsActive {
			out.TargetEntryID = sig.snapshot.EntryID
		}
	}
	return out
}

// EntryTypeForKind maps a memory kind onto the entry type it targets, or ""
// when none applies.
func EntryTypeForKind(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case k == "":
		return ""
	case strings.Contains(k, "goal"):
		return "goal"
	case strings.Contains(k, "event"), strings.Contains(k, "schedule"):
		return "schedule"
	case strings.Contains(k, "entry"), strings.Contains(k, "journal"):
		return "journal"
	}
	return ""
}

func recentlyMentioned(text string, recent []window.RecentMessage) bool {
	r := []rune(text)
	if len(r) < DuplicatePrefixLength {
		return false
	}
	prefix := strings.ToLower(string(r[:DuplicatePrefixLength]))
	for _, m := range recent {
		if strings.Contains(strings.ToLower(m.Text), prefix) {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func cand(label string, confidence float64) models.Candidate {
	return models.Candidate{Label: label, Confidence: confidence}
}
