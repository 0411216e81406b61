package goals

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

type fileGoal struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Status      string   `yaml:"status"`
	Priority    float64  `yaml:"priority"`
	TargetDate  string   `yaml:"target_date"`
	Description string   `yaml:"description"`
	Steps       []string `yaml:"steps"`
	Done        []string `yaml:"done"`
}

// FileProvider reads goals from a YAML file with a top-level "goals" list.
// Goals whose status is not active are skipped; the rest are ordered by
// priority, highest first. A missing file yields no goals.
type FileProvider struct {
	Path string
}

func (f FileProvider) ListActive(ctx context.Context, limit int) ([]models.GoalContextItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.GoalContextItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}

	var doc struct {
		Goals []fileGoal `yaml:"goals"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse goals %s: %w", f.Path, err)
	}

	items := make([]models.GoalContextItem, 0, len(doc.Goals))
	for _, g := range doc.Goals {
		status := cmp.Or(g.Status, "active")
		if status != "active" {
			continue
		}
		items = append(items, g.item(status))
	}
	slices.SortStableFunc(items, func(a, b models.GoalContextItem) int {
		return cmp.Compare(b.PriorityScore, a.PriorityScore)
	})
	if limit <= 0 {
		limit = DefaultLimit
	}
	return items[:min(limit, len(items))], nil
}

func (g fileGoal) item(status string) models.GoalContextItem {
	item := models.GoalContextItem{
		ID:            g.ID,
		Title:         g.Title,
		Status:        status,
		PriorityScore: g.Priority,
		TargetDate:    g.TargetDate,
		Description:   g.Description,
		MicroSteps:    []models.MicroStep{},
		Metadata:      map[string]any{},
		Conflicts:     []string{},
		LinkedEntries: []models.GoalLinkedEntry{},
	}
	for i, s := range g.Done {
		item.MicroSteps = append(item.MicroSteps, models.MicroStep{ID: fmt.Sprintf("%s-done-%d", g.ID, i), Description: s, Completed: true})
	}
	for i, s := range g.Steps {
		item.MicroSteps = append(item.MicroSteps, models.MicroStep{ID: fmt.Sprintf("%s-step-%d", g.ID, i), Description: s})
	}
	total := len(item.MicroSteps)
	item.Progress = models.GoalProgress{Completed: len(g.Done), Total: total}
	if total > 0 {
		item.Progress.Ratio = float64(len(g.Done)) / float64(total)
	}
	if pending := item.PendingSteps(1); len(pending) > 0 {
		item.CurrentStep = pending[0]
	}
	return item
}
