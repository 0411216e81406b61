package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// Wednesday 2025-11-05 10:00 UTC.
var slotNow = time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC)

func fill(text, label string, opts SlotOptions) map[string]string {
	if opts.Now.IsZero() {
		opts.Now = slotNow
	}
	f := NewSlotFiller(clock.NewManual(slotNow))
	return f.Fill(text, models.RoutedIntent{Label: label, RawLabel: label}, opts).Slots
}

func TestFillSchedule(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start string
		end   string
	}{
		{name: "next weekday with time", text: "schedule a call next friday at 3pm", start: "2025-11-07T15:00:00Z", end: "2025-11-07T16:00:00Z"},
		{name: "bare weekday naming today", text: "gym wednesday at 7am", start: "2025-11-12T07:00:00Z", end: "2025-11-12T08:00:00Z"},
		{name: "this weekday naming today", text: "standup this wednesday 16:30", start: "2025-11-05T16:30:00Z", end: "2025-11-05T17:30:00Z"},
		{name: "day after tomorrow", text: "dentist day after tomorrow at 9", start: "2025-11-07T09:00:00Z", end: "2025-11-07T10:00:00Z"},
		{name: "duration", text: "deep work tomorrow at 2pm for 2 hours", start: "2025-11-06T14:00:00Z", end: "2025-11-06T16:00:00Z"},
		{name: "past time rolls a week", text: "review at 8am", start: "2025-11-12T08:00:00Z", end: "2025-11-12T09:00:00Z"},
		{name: "tonight", text: "call dad tonight", start: "2025-11-05T20:00:00Z", end: "2025-11-05T21:00:00Z"},
		{name: "iso date", text: "conference 2025-12-01 at 10am", start: "2025-12-01T10:00:00Z", end: "2025-12-01T11:00:00Z"},
		{name: "month name", text: "launch on jan 15, 2026 at 12pm", start: "2026-01-15T12:00:00Z", end: "2026-01-15T13:00:00Z"},
		{name: "slash date two digit year", text: "trip 12/24/25", start: "2025-12-24T00:00:00Z", end: "2025-12-24T01:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := fill(tt.text, "ScheduleCreate", SlotOptions{})
			assert.Equal(t, tt.start, slots["start"])
			assert.Equal(t, tt.end, slots["end"])
		})
	}
}

func TestFillKeepsExplicitEnd(t *testing.T) {
	f := NewSlotFiller(clock.NewManual(slotNow))
	in := models.RoutedIntent{Label: "ScheduleCreate", Slots: map[string]string{"end": "2025-11-06T18:00:00Z"}}
	got := f.Fill("block tomorrow at 5pm", in, SlotOptions{})

	assert.Equal(t, "2025-11-06T17:00:00Z", got.Slots["start"])
	assert.Equal(t, "2025-11-06T18:00:00Z", got.Slots["end"])
	assert.NotContains(t, in.Slots, "start", "input intent must not be mutated")
}

func TestFillDuration(t *testing.T) {
	assert.Equal(t, "45", fill("stretch for 45 minutes", "ScheduleCreate", SlotOptions{})["duration_minutes"])
	assert.Equal(t, "120", fill("read for 2 hours", "Conversational", SlotOptions{})["duration_minutes"])
}

func TestFillGoal(t *testing.T) {
	slots := fill("my goal is to run a marathon by 2026-04-12", "GoalCreate", SlotOptions{})
	assert.Equal(t, "2026-04-12", slots["due"])
	assert.Equal(t, "Run A Marathon By 2026-04-12", slots["title"])
	assert.NotContains(t, slots, "start")
}

func TestFillJournal(t *testing.T) {
	t.Run("entry labels are journal typed", func(t *testing.T) {
		slots := fill("remember to call mom tomorrow", "Entry Create", SlotOptions{})
		assert.Equal(t, "2025-11-06T10:00:00Z", slots["ts"])
	})
	t.Run("title", func(t *testing.T) {
		slots := fill("thinking about career changes. it is hard", "Journal", SlotOptions{})
		assert.Equal(t, "Career Changes", slots["title"])
		assert.NotContains(t, slots, "ts")
	})
	t.Run("existing title kept", func(t *testing.T) {
		f := NewSlotFiller(nil)
		in := models.RoutedIntent{Label: "Journal", Slots: map[string]string{"title": "Mine"}}
		got := f.Fill("notes about stuff", in, SlotOptions{Now: slotNow})
		assert.Equal(t, "Mine", got.Slots["title"])
	})
}

func TestFillTimeZone(t *testing.T) {
	// 10:00 UTC is 05:00 in New York; "tonight" is 20:00 there.
	slots := fill("call dad tonight", "ScheduleCreate", SlotOptions{TimeZone: "America/New_York"})
	assert.Equal(t, "2025-11-06T01:00:00Z", slots["start"])

	slots = fill("call dad tonight", "ScheduleCreate", SlotOptions{TimeZone: "Not/AZone"})
	assert.Equal(t, "2025-11-05T20:00:00Z", slots["start"])
}

func TestFillNoDate(t *testing.T) {
	slots := fill("I have 3 cats", "ScheduleCreate", SlotOptions{})
	assert.NotContains(t, slots, "start")
	assert.NotContains(t, slots, "end")
}

func TestSlotFamily(t *testing.T) {
	assert.Equal(t, FamilySchedule, SlotFamily(models.RoutedIntent{Label: "ScheduleCreate"}))
	assert.Equal(t, FamilyGoal, SlotFamily(models.RoutedIntent{Label: "GoalCreate"}))
	assert.Equal(t, FamilyJournal, SlotFamily(models.RoutedIntent{Label: "EntryAppend", RawLabel: "Entry Append"}))
	assert.Equal(t, "", SlotFamily(models.RoutedIntent{Label: "Command", RawLabel: "Command"}))
}
