package goals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	var seed []models.GoalContextItem
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		seed = append(seed, models.GoalContextItem{ID: id})
	}
	p := NewMemoryProvider(seed...)

	got, err := p.ListActive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
	assert.Equal(t, "a", got[0].ID)

	got, err = p.ListActive(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got[0].ID = "mutated"
	again, err := p.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].ID)

	p.Seed(nil)
	got, err = p.ListActive(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.ListActive(cancelled, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMentionsGoal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{text: "My goal is to run", want: true},
		{text: "two milestones left!", want: true},
		{text: "new habit: stretch", want: true},
		{text: "I'm planning my week", want: true},
		{text: "working on my projects today?", want: true},
		{text: "building habits is hard?", want: true},
		{text: "milestone-driven", want: true},
		{text: "PLAN B", want: true},
		{text: "remember to call mom tomorrow", want: false},
		{text: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MentionsGoal(tt.text))
		})
	}
}
