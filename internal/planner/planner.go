// Package planner picks the downstream action for an enriched utterance and
// executes the structured tool call it produces.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/cache"
	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// Plan is one planner decision. Cached reports a memoized response;
// Prompt is the rendered planning context kept for inspection.
type Plan struct {
	Response models.PlannerResponse `json:"response"`
	Cached   bool                   `json:"cached"`
	Prompt   string                 `json:"prompt,omitempty"`
}

// Planner selects actions by label and memoizes the cheap-to-repeat ones.
type Planner struct {
	cache  *cache.EdgeCache[models.PlannerResponse]
	logger *slog.Logger
}

func New(c clock.Clock, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		cache:  cache.New[models.PlannerResponse](c),
		logger: logger,
	}
}

// TTL is how long a response for action stays cached; zero means never.
func TTL(action string) time.Duration {
	switch action {
	case models.ActionReflect:
		return 2 * time.Minute
	case models.ActionSettingsUpdate:
		return 5 * time.Minute
	case models.ActionNoop:
		return time.Minute
	}
	return 0
}

// Plan returns the action for payload. A cached response that no longer
// validates is dropped and planned again.
func (p *Planner) Plan(ctx context.Context, payload models.EnrichedPayload) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	key, err := CacheKey(payload)
	if err != nil {
		return Plan{}, fmt.Errorf("build planner cache key: %w", err)
	}

	if cached, ok := p.cache.Get(key); ok {
		err := Validate(cached)
		if err == nil {
			return Plan{Response: copyResponse(cached), Cached: true}, nil
		}
		p.logger.Warn("discarding cached plan", "action", cached.Action, "error", err)
		p.cache.Delete(key)
	}

	resp := Heuristic(payload)
	p.cache.Set(key, copyResponse(resp), TTL(resp.Action))
	return Plan{Response: resp, Prompt: Prompt(payload)}, nil
}

// Heuristic maps the intent label onto an action by substring, checked in
// the order schedule, goal, journal or entry, reflect, command.
func Heuristic(payload models.EnrichedPayload) models.PlannerResponse {
	label := strings.ToLower(payload.Intent.Label)
	action := models.ActionNoop
	switch {
	case strings.Contains(label, "schedule"):
		action = models.ActionScheduleCreate
	case strings.Contains(label, "goal"):
		action = models.ActionGoalCreate
	case strings.Contains(label, "journal"), strings.Contains(label, "entry"):
		action = models.ActionJournalCreate
	case strings.Contains(label, "reflect"):
		action = models.ActionReflect
	case strings.Contains(label, "command"):
		action = models.ActionSettingsUpdate
	}

	slots := make(map[string]any, len(payload.Intent.Slots))
	for k, v := range payload.Intent.Slots {
		slots[k] = v
	}
	snippets := append([]string{}, payload.ContextSnippets...)
	return models.PlannerResponse{
		Action:  action,
		Payload: map[string]any{"slots": slots, "context": snippets},
	}
}

// Validate checks a planner response: a known action, a string or absent
// ask, and a payload object.
func Validate(resp models.PlannerResponse) error {
	if !models.ValidActions[resp.Action] {
		return fmt.Errorf("%w: unknown action %q", models.ErrConsistency, resp.Action)
	}
	if resp.Payload == nil {
		return fmt.Errorf("%w: missing payload", models.ErrConsistency)
	}
	return nil
}

// CacheKey serialises the planning inputs with sorted keys so equal inputs
// give equal keys.
func CacheKey(payload models.EnrichedPayload) (string, error) {
	var goals any
	if len(payload.GoalContext) > 0 {
		goals = payload.GoalContext
	}
	key := map[string]any{
		"label":       payload.Intent.Label,
		"slots":       payload.Intent.Slots,
		"context":     payload.ContextSnippets,
		"text":        payload.UserText,
		"userConfig":  payload.UserConfig,
		"goalContext": goals,
	}
	b, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Prompt renders the planning context in the sectioned text form used by
// model-backed planners.
func Prompt(payload models.EnrichedPayload) string {
	in := payload.Intent
	var b strings.Builder
	fmt.Fprintf(&b, "[INTENT]\n%s (p=%.2f)", in.Label, in.Confidence)
	if in.SecondBest != "" && in.SecondConfidence > 0 {
		fmt.Fprintf(&b, "\nSecondary intent: %s (%.2f)", in.SecondBest, in.SecondConfidence)
	}
	slots, _ := json.MarshalIndent(in.Slots, "", "  ")
	fmt.Fprintf(&b, "\n\n[SLOTS]\n%s", slots)

	snippets := strings.Join(payload.ContextSnippets, "\n---\n")
	if snippets == "" {
		snippets = "n/a"
	}
	fmt.Fprintf(&b, "\n\n[CONTEXT]\n%s\n\n[USER]\n%s", snippets, payload.UserText)

	cfg, _ := json.MarshalIndent(payload.UserConfig, "", "  ")
	fmt.Fprintf(&b, "\n\n[USER_CONFIG]\n%s", cfg)

	if len(payload.GoalContext) > 0 {
		type goalSummary struct {
			ID             string   `json:"id"`
			Title          string   `json:"title"`
			Status         string   `json:"status"`
			Priority       string   `json:"priority"`
			CurrentStep    string   `json:"current_step"`
			NextMicroSteps []string `json:"next_micro_steps"`
			Conflicts      []string `json:"conflicts"`
		}
		goals := make([]goalSummary, 0, len(payload.GoalContext))
		for _, g := range payload.GoalContext {
			goals = append(goals, goalSummary{
				ID:             g.ID,
				Title:          g.Title,
				Status:         g.Status,
				Priority:       fmt.Sprintf("%.2f", g.PriorityScore),
				CurrentStep:    g.CurrentStep,
				NextMicroSteps: g.PendingSteps(3),
				Conflicts:      g.Conflicts,
			})
		}
		out, _ := json.MarshalIndent(goals, "", "  ")
		fmt.Fprintf(&b, "\n\n[GOALS]\n%s", out)
	}
	return b.String()
}

// copyResponse detaches a response from the cache. Nested slot and context
// values are copied one level down, which covers everything Heuristic builds.
func copyResponse(r models.PlannerResponse) models.PlannerResponse {
	out := r
	if r.Ask != nil {
		ask := *r.Ask
		out.Ask = &ask
	}
	if r.Payload != nil {
		out.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			switch tv := v.(type) {
			case map[string]any:
				m := make(map[string]any, len(tv))
				for mk, mv := range tv {
					m[mk] = mv
				}
				out.Payload[k] = m
			case []string:
				out.Payload[k] = append([]string(nil), tv...)
			default:
				out.Payload[k] = v
			}
		}
	}
	return out
}
