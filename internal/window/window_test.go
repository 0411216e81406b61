package window

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWindow() (*Window, *clock.Manual) {
	c := clock.NewManual(time.Date(2025, 11, 7, 9, 0, 0, 0, time.UTC))
	return New(c), c
}

func TestRegisterIsActive(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "journal")

	snap, ok := w.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.IsActive)
	assert.Equal(t, 1.0, snap.DecayScore)
	assert.Equal(t, "journal", snap.EntryType)
}

func TestAdvanceTurnDecaysToNothing(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "journal")

	for i := 0; i < 3; i++ {
		w.AdvanceTurn(false)
	}
	snap, ok := w.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, 0.216, snap.DecayScore, 1e-9)

	w.AdvanceTurn(false)
	_, ok = w.Snapshot()
	assert.False(t, ok, "0.6^4 is below the floor")
}

func TestAdvanceTurnCreatedEntryResets(t *testing.T) {
	w, c := newTestWindow()
	w.Register("e1", "goal")
	w.AdvanceTurn(false)
	c.Advance(time.Minute)
	w.AdvanceTurn(true)

	snap, ok := w.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1.0, snap.DecayScore)
	assert.Equal(t, c.Now().UnixMilli(), snap.CreatedAt)
}

func TestRefreshKeepsType(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "goal")
	w.Refresh("e2", UnknownType)

	snap, _ := w.Snapshot()
	assert.Equal(t, "e2", snap.EntryID)
	assert.Equal(t, "goal", snap.EntryType)

	w.Refresh("e3", "schedule")
	snap, _ = w.Snapshot()
	assert.Equal(t, "schedule", snap.EntryType)

	w.Clear()
	w.Refresh("e4", "")
	snap, _ = w.Snapshot()
	assert.Equal(t, UnknownType, snap.EntryType)
}

func TestSalience(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{text: "", want: 0},
		{text: "!!!", want: 0},
		{text: "ok", want: 1.0/12*0.6 + 2.0/5*0.4},
		{text: "finished quarterly planning", want: 3.0/12*0.6 + 1*0.4},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.InDelta(t, tt.want, Salience(tt.text), 1e-9)
		})
	}
}

func TestRecordUserMessageFeedsDecay(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "journal")
	w.RecordUserMessage("ok")

	snap, ok := w.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, min(1, 0.6+Salience("ok")*0.5), snap.DecayScore, 1e-9)

	w.RecordUserMessage("")
	assert.Len(t, w.Recent(), 1)
}

func TestRecordUserMessageClearsWeakFocus(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "journal")
	w.AdvanceTurn(false)
	w.AdvanceTurn(false)     // 0.36
	w.RecordUserMessage("?") // 0.216 + 0 -> still active
	_, ok := w.Snapshot()
	require.True(t, ok)
	w.RecordUserMessage("?") // 0.1296 -> cleared
	_, ok = w.Snapshot()
	assert.False(t, ok)
}

func TestReceiptKeepsFocus(t *testing.T) {
	w, _ := newTestWindow()
	w.Register("e1", "journal")
	w.RecordUserMessage("payment confirmed")

	msgs := w.Recent()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsReceipt)
	assert.Equal(t, 1.0, msgs[0].Score)
}

func TestRingIsBoundedAndKeepsReceipts(t *testing.T) {
	w, c := newTestWindow()
	w.RecordUserMessage("receipt for the gym")
	for i := 0; i < 15; i++ {
		c.Advance(time.Second)
		w.RecordUserMessage(fmt.Sprintf("message number %d", i))
	}

	msgs := w.Recent()
	require.Len(t, msgs, MaxSemanticTurns)
	assert.True(t, msgs[0].IsReceipt, "receipt survives pruning")
	assert.Equal(t, "message number 14", msgs[len(msgs)-1].Text)
	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].Timestamp, msgs[i].Timestamp)
	}
}

func TestConcurrentUse(t *testing.T) {
	w, _ := newTestWindow()
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				w.Register(fmt.Sprintf("e%d", i), "journal")
				w.RecordUserMessage("worked on the launch plan")
				w.AdvanceTurn(j%3 == 0)
				w.Snapshot()
				w.Recent()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, len(w.Recent()), MaxSemanticTurns)
}
