package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// ScheduleStore persists calendar blocks created by schedule.create.
type ScheduleStore struct {
	db *DB
}

func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// SaveBlock inserts a schedule block.
func (s *ScheduleStore) SaveBlock(ctx context.Context, b models.ScheduleBlock) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal schedule block: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedule_blocks (id, user_id, start_at, end_at, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.UserID, b.StartAt, b.EndAt, string(body), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("save schedule block: %w", err)
	}
	return nil
}

// ListBlocks returns a user's blocks ordered by start time.
func (s *ScheduleStore) ListBlocks(ctx context.Context, userID string) ([]models.ScheduleBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM schedule_blocks WHERE user_id = ? ORDER BY start_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduleBlock
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan schedule block: %w", err)
		}
		var b models.ScheduleBlock
		if err := json.Unmarshal([]byte(body), &b); err != nil {
			return nil, fmt.Errorf("decode schedule block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
