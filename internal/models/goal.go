package models

// MicroStep is one small actionable step of a goal.
type MicroStep struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type GoalProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
}

type GoalLinkedEntry struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Snippet   string `json:"snippet"`
}

// GoalContextItem is an active goal with the context planning needs.
type GoalContextItem struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Status        string            `json:"status"`
	PriorityScore float64           `json:"priority_score"`
	TargetDate    string            `json:"target_date,omitempty"`
	CurrentStep   string            `json:"current_step,omitempty"`
	MicroSteps    []MicroStep       `json:"micro_steps"`
	Progress      GoalProgress      `json:"progress"`
	Description   string            `json:"description,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
	Metadata      map[string]any    `json:"metadata"`
	SourceEntryID string            `json:"source_entry_id,omitempty"`
	Conflicts     []string          `json:"conflicts"`
	LinkedEntries []GoalLinkedEntry `json:"linked_entries"`
}

// PendingSteps returns up to n incomplete micro-step descriptions.
func (g GoalContextItem) PendingSteps(n int) []string {
	var out []string
	for _, s := range g.MicroSteps {
		if len(out) >= n {
			break
		}
		if !s.Completed {
			out = append(out, s.Description)
		}
	}
	return out
}

// ScheduleBlock is a persisted calendar block produced by schedule.create.
type ScheduleBlock struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	StartAt   string         `json:"start_at"`
	EndAt     string         `json:"end_at"`
	Intent    string         `json:"intent"`
	Summary   string         `json:"summary,omitempty"`
	GoalID    string         `json:"goal_id,omitempty"`
	Location  string         `json:"location,omitempty"`
	Attendees []string       `json:"attendees"`
	Receipts  map[string]any `json:"receipts"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}
