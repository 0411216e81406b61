// Package goals supplies active goals with the context planning needs.
package goals

import (
	"context"
	"strings"
	"sync"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// DefaultLimit is the number of goals returned when no limit is given.
const DefaultLimit = 5

// Keywords mark text that is about goals.
var Keywords = []string{"goal", "goals", "milestone", "milestones", "project", "habit", "plan"}

// Provider lists a user's active goals.
type Provider interface {
	ListActive(ctx context.Context, limit int) ([]models.GoalContextItem, error)
}

// MemoryProvider serves goals seeded in process memory.
type MemoryProvider struct {
	mu    sync.RWMutex
	goals []models.GoalContextItem
}

func NewMemoryProvider(goals ...models.GoalContextItem) *MemoryProvider {
	p := &MemoryProvider{}
	p.Seed(goals)
	return p
}

// Seed replaces the served goals.
func (p *MemoryProvider) Seed(goals []models.GoalContextItem) {
	p.mu.Lock()
	p.goals = append([]models.GoalContextItem(nil), goals...)
	p.mu.Unlock()
}

// ListActive returns up to limit goals in seed order; limit <= 0 means
// DefaultLimit.
func (p *MemoryProvider) ListActive(ctx context.Context, limit int) ([]models.GoalContextItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := min(limit, len(p.goals))
	return append([]models.GoalContextItem{}, p.goals[:n]...), nil
}

// MentionsGoal reports whether text contains a goal keyword anywhere,
// ignoring case, so "planning" and "projects" count.
func MentionsGoal(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
