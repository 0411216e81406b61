package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// DefaultBlockIntent labels schedule blocks created without an intent.
const DefaultBlockIntent = "focus.block"

// ScheduleSink persists schedule blocks.
type ScheduleSink interface {
	SaveBlock(ctx context.Context, b models.ScheduleBlock) error
}

// MemorySink keeps schedule blocks in process memory.
type MemorySink struct {
	mu     sync.Mutex
	blocks []models.ScheduleBlock
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) SaveBlock(_ context.Context, b models.ScheduleBlock) error {
	s.mu.Lock()
	s.blocks = append(s.blocks, b)
	s.mu.Unlock()
	return nil
}

// Blocks returns a copy of the saved blocks in save order.
func (s *MemorySink) Blocks() []models.ScheduleBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScheduleBlock(nil), s.blocks...)
}

// Executor runs planner responses against their subsystems.
type Executor struct {
	sink  ScheduleSink
	clock clock.Clock
}

func NewExecutor(sink ScheduleSink, c clock.Clock) *Executor {
	if sink == nil {
		sink = NewMemorySink()
	}
	return &Executor{sink: sink, clock: clock.OrReal(c)}
}

// Execute runs resp for userID. schedule.create validates and persists a
// block; other known actions pass their payload through. A nil response or
// an unknown action yields nil.
func (e *Executor) Execute(ctx context.Context, resp *models.PlannerResponse, userID string) (*models.ToolResult, error) {
	if resp == nil {
		return nil, nil
	}
	switch resp.Action {
	case models.ActionScheduleCreate:
		return e.createSchedule(ctx, resp, userID)
	case models.ActionJournalCreate, models.ActionGoalCreate, models.ActionSettingsUpdate,
		models.ActionReflect, models.ActionNoop:
		payload := resp.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		return &models.ToolResult{Action: resp.Action, Payload: payload}, nil
	}
	return nil, nil
}

func (e *Executor) createSchedule(ctx context.Context, resp *models.PlannerResponse, userID string) (*models.ToolResult, error) {
	payload := make(map[string]any, len(resp.Payload)+1)
	for k, v := range resp.Payload {
		payload[k] = v
	}
	slots := slotValues(payload["slots"])

	startRaw := firstString(payload, slots, "start", "start_at")
	endRaw := firstString(payload, slots, "end", "end_at")
	if startRaw == "" || endRaw == "" {
		return nil, models.InvalidInput("schedule payload missing start/end")
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, models.InvalidInput("schedule start %q: %v", startRaw, err)
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return nil, models.InvalidInput("schedule end %q: %v", endRaw, err)
	}
	if !start.Before(end) {
		return nil, models.InvalidInput("schedule start time must be before end time")
	}

	intent := stringField(payload, "intent")
	if strings.TrimSpace(intent) == "" {
		intent = DefaultBlockIntent
	}
	now := e.clock.Now().UTC().Format(time.RFC3339)
	block := models.ScheduleBlock{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartAt:   startRaw,
		EndAt:     endRaw,
		Intent:    intent,
		Summary:   stringField(payload, "summary"),
		GoalID:    stringField(payload, "goal_id"),
		Location:  stringField(payload, "location"),
		Attendees: attendees(payload["attendees"]),
		Receipts:  objectField(payload, "receipts"),
		Metadata:  objectField(payload, "metadata"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.sink.SaveBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("persist schedule block: %w", err)
	}

	payload["schedule"] = block
	return &models.ToolResult{Action: resp.Action, Payload: payload}, nil
}

// slotValues accepts the slot shapes a payload may carry.
func slotValues(v any) map[string]any {
	switch tv := v.(type) {
	case map[string]any:
		return tv
	case map[string]string:
		out := make(map[string]any, len(tv))
		for k, s := range tv {
			out[k] = s
		}
		return out
	}
	return nil
}

// firstString looks for keys at the payload top level, then in its slots.
func firstString(payload, slots map[string]any, keys ...string) string {
	for _, src := range []map[string]any{payload, slots} {
		for _, k := range keys {
			if s, ok := src[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func objectField(m map[string]any, key string) map[string]any {
	if obj, ok := m[key].(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func attendees(v any) []string {
	out := []string{}
	switch tv := v.(type) {
	case []string:
		out = append(out, tv...)
	case []any:
		for _, a := range tv {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
