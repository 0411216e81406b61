// Package window tracks the single active conversational focus and a short
// ring of recent user messages. Focus decays every turn it is not renewed.
package window

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
)

const (
	MaxSemanticTurns = 10
	DecayFactor      = 0.6
	MinActiveScore   = 0.2

	// UnknownType keeps the previous entry type on Refresh.
	UnknownType = "unknown"
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// State is the active focus.
type State struct {
	EntryID    string  `json:"entryId"`
	EntryType  string  `json:"entryType"`
	CreatedAt  int64   `json:"createdAt"`
	DecayScore float64 `json:"decayScore"`
}

// Snapshot is a copy of the focus plus its derived activity flag.
type Snapshot struct {
	State
	IsActive bool `json:"isActive"`
}

// RecentMessage is one user message kept for duplicate and salience checks.
type RecentMessage struct {
	Text      string  `json:"text"`
	Timestamp int64   `json:"ts"`
	Score     float64 `json:"score"`
	IsReceipt bool    `json:"isReceipt"`
	seq       uint64
}

// Window is safe for concurrent use; every method holds the one lock.
type Window struct {
	mu       sync.Mutex
	clock    clock.Clock
	state    *State
	messages []RecentMessage
	seq      uint64
}

func New(c clock.Clock) *Window {
	return &Window{clock: clock.OrReal(c)}
}

// Register starts a fresh focus at full strength.
func (w *Window) Register(entryID, entryType string) {
	if entryType == "" {
		entryType = UnknownType
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = &State{
		EntryID:    entryID,
		EntryType:  entryType,
		CreatedAt:  clock.NowMillis(w.clock),
		DecayScore: 1,
	}
}

// Refresh re-anchors the focus, keeping the previous type when entryType
// is empty or unknown.
func (w *Window) Refresh(entryID, entryType string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entryType == "" || entryType == UnknownType {
		entryType = UnknownType
		if w.state != nil {
			entryType = w.state.EntryType
		}
	}
	w.state = &State{
		EntryID:    entryID,
		EntryType:  entryType,
		CreatedAt:  clock.NowMillis(w.clock),
		DecayScore: 1,
	}
}

// Clear drops the focus and all recent messages.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = nil
	w.messages = nil
}

// Snapshot returns the current focus, or false when there is none.
func (w *Window) Snapshot() (Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == nil {
		return Snapshot{}, false
	}
	return Snapshot{State: *w.state, IsActive: w.state.DecayScore >= MinActiveScore}, true
}

// RecordUserMessage scores text, adds it to the ring and feeds its salience
// into the focus decay. Empty text is ignored.
func (w *Window) RecordUserMessage(text string) {
	if text == "" {
		return
	}
	receipt := IsReceipt(text)
	score := Salience(text)
	if receipt {
		score = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	msg := RecentMessage{
		Text:      text,
		Timestamp: clock.NowMillis(w.clock),
		Score:     score,
		IsReceipt: receipt,
		seq:       w.seq,
	}
	w.messages = prune(append(append([]RecentMessage(nil), w.messages...), msg))

	if w.state != nil {
		w.state.DecayScore = min(1, w.state.DecayScore*DecayFactor+score*0.5)
		if w.state.DecayScore < MinActiveScore && !receipt {
			w.state = nil
		}
	}
}

// AdvanceTurn renews the focus when an entry was created this turn and
// decays it otherwise.
func (w *Window) AdvanceTurn(createdEntry bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == nil {
		return
	}
	if createdEntry {
		w.state.DecayScore = 1
		w.state.CreatedAt = clock.NowMillis(w.clock)
		return
	}
	w.state.DecayScore *= DecayFactor
	if w.state.DecayScore < MinActiveScore {
		w.state = nil
	}
}

// Recent returns a copy of the kept messages, oldest first.
func (w *Window) Recent() []RecentMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]RecentMessage, len(w.messages))
	copy(out, w.messages)
	return out
}

// Salience scores a message by token count and average token length.
func Salience(text string) float64 {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return 0
	}
	var tokens []string
	for _, tok := range tokenSplit.Split(trimmed, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return 0
	}
	total := 0
	for _, tok := range tokens {
		total += len(tok)
	}
	avg := float64(total) / float64(len(tokens))
	base := min(1, float64(len(tokens))/12)
	lexical := min(1, avg/5)
	return min(1, base*0.6+lexical*0.4)
}

// IsReceipt reports whether text confirms something already done.
func IsReceipt(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "receipt") || strings.Contains(lowered, "confirmed")
}

// prune keeps every receipt plus the newest non-receipts up to the cap,
// then trims oldest non-receipts first until the ring fits. Receipts are
// dropped oldest-first only when they alone exceed the cap.
func prune(msgs []RecentMessage) []RecentMessage {
	byNewest := func(s []RecentMessage) {
		sort.SliceStable(s, func(i, j int) bool {
			if s[i].Timestamp != s[j].Timestamp {
				return s[i].Timestamp > s[j].Timestamp
			}
			return s[i].seq > s[j].seq
		})
	}
	byNewest(msgs)

	kept := make([]RecentMessage, 0, len(msgs))
	nonReceipts := 0
	for _, m := range msgs {
		if m.IsReceipt {
			kept = append(kept, m)
			continue
		}
		if nonReceipts < MaxSemanticTurns {
			kept = append(kept, m)
			nonReceipts++
		}
	}

	// kept is newest first; walk from the oldest end.
	for i := len(kept) - 1; i >= 0 && len(kept) > MaxSemanticTurns; i-- {
		if !kept[i].IsReceipt {
			kept = append(kept[:i], kept[i+1:]...)
		}
	}
	if len(kept) > MaxSemanticTurns {
		kept = kept[:MaxSemanticTurns]
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
