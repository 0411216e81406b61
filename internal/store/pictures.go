package store

import (
	"context"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

const (
	pictureWindow   = 72 * time.Hour
	pictureRowScan  = 64
	pictureHotLimit = 5
	pictureGoalCap  = 3
)

// PictureStore assembles an operating picture from the snapshotted rows and
// the schedule blocks of a user.
type PictureStore struct {
	rows      *MemoryRowStore
	schedules *ScheduleStore
	clock     clock.Clock
}

func NewPictureStore(db *DB, c clock.Clock) *PictureStore {
	return &PictureStore{
		rows:      NewMemoryRowStore(db),
		schedules: NewScheduleStore(db),
		clock:     clock.OrReal(c),
	}
}

// OperatingPicture returns the user's blocks starting within 72 hours and
// the newest goals and entries the user owns or shares.
func (p *PictureStore) OperatingPicture(ctx context.Context, userID string) (*models.OperatingPicture, error) {
	pic := models.DefaultOperatingPicture()
	now := p.clock.Now().UTC()

	blocks, err := p.schedules.ListBlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		start, err := time.Parse(time.RFC3339, b.StartAt)
		if err != nil || start.Before(now) || start.After(now.Add(pictureWindow)) {
			continue
		}
		pic.Next72h = append(pic.Next72h, map[string]any{
			"id":       b.ID,
			"start_at": b.StartAt,
			"end_at":   b.EndAt,
			"intent":   b.Intent,
			"summary":  b.Summary,
		})
	}

	rows, err := p.rows.LoadNewestFor(ctx, userID, pictureRowScan)
	if err != nil {
		return nil, err
	}
	var last *int64
	for _, r := range rows {
		if last == nil {
			ts := r.Timestamp
			last = &ts
		}
		item := map[string]any{"id": r.ID, "text": r.Text, "ts": r.Timestamp}
		switch {
		case r.Kind == models.KindGoal && len(pic.TopGoals) < pictureGoalCap:
			pic.TopGoals = append(pic.TopGoals, item)
		case r.Kind == models.KindEntry && len(pic.HotEntries) < pictureHotLimit:
			pic.HotEntries = append(pic.HotEntries, item)
		}
	}
	pic.CadenceProfile.LastMessageAt = last
	return &pic, nil
}
