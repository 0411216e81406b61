package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	ok, err := columnExists(db.DB, "traces", "intent_label")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmbeddingCacheStore(t *testing.T) {
	ctx := context.Background()
	s := NewEmbeddingCacheStore(setupTestDB(t))

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &models.EmbeddingCacheEntry{ContentHash: "abc", Embedding: []byte{1, 2, 3, 4}, Dimension: 1, Model: "m"}
	require.NoError(t, s.Put(ctx, entry))
	require.NoError(t, s.Put(ctx, entry))

	got, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Embedding, got.Embedding)
	assert.Equal(t, "m", got.Model)
}

func TestMemoryRowStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := NewMemoryRowStore(db)

	rows := []models.MemoryRow{
		{ID: "a", Kind: models.KindEntry, Text: "ran 5k", Timestamp: 10, Embedding: []float32{1, 0}},
		{ID: "b", Kind: models.KindGoal, Text: "learn go", Timestamp: 30, Embedding: []float32{0, 1}},
		{ID: "c", Kind: models.KindPref, Text: "mornings", Timestamp: 20, Embedding: []float32{0.6, 0.8}},
	}
	require.NoError(t, s.SaveRows(ctx, rows))

	got, err := s.LoadNewest(ctx, 2)
	require.NoError(t, err)
	want := []models.MemoryRow{rows[1], rows[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LoadNewest mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.DeleteRow(ctx, "", "b"))
	require.NoError(t, s.DeleteRow(ctx, "", "missing"))

	count, err := db.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryRowStoreOwners(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := NewMemoryRowStore(db)

	require.NoError(t, s.SaveRows(ctx, []models.MemoryRow{
		{ID: "x", Kind: models.KindEntry, Text: "shared", Timestamp: 10},
		{ID: "x", Owner: "alice", Kind: models.KindEntry, Text: "alice only", Timestamp: 20},
		{ID: "y", Owner: "bob", Kind: models.KindEntry, Text: "bob only", Timestamp: 30},
	}))

	all, err := s.LoadNewest(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "the same id under two owners is two rows")

	alice, err := s.LoadNewestFor(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "alice only", alice[0].Text)
	assert.Equal(t, "shared", alice[1].Text)

	require.NoError(t, s.DeleteRow(ctx, "alice", "x"))
	alice, err = s.LoadNewestFor(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Empty(t, alice[0].Owner)
}

func TestOpenMigratesRowOwners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TABLE memory_rows (id TEXT PRIMARY KEY, kind TEXT NOT NULL, text TEXT NOT NULL, ts INTEGER NOT NULL, embedding BLOB);
		INSERT INTO memory_rows (id, kind, text, ts) VALUES ('a', 'entry', 'before owners', 5);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	ok, err := columnExists(db.DB, "memory_rows", "owner")
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := NewMemoryRowStore(db).LoadNewest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "before owners", rows[0].Text)
	assert.Empty(t, rows[0].Owner)
}

func TestTraceStore(t *testing.T) {
	ctx := context.Background()
	s := NewTraceStore(setupTestDB(t))

	first := models.Trace{ID: "t1", Timestamp: 100, IntentLabel: "EntryCreate", Decision: models.RouteDecision{Kind: models.DecisionCommit, Primary: "EntryCreate"}}
	second := models.Trace{ID: "t2", Timestamp: 200, IntentLabel: "SearchQuery"}
	require.NoError(t, s.SaveTrace(ctx, first))
	require.NoError(t, s.SaveTrace(ctx, second))

	got, err := s.GetTrace(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Decision, got.Decision)

	missing, err := s.GetTrace(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListTraces(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID)

	filtered, err := s.ListTraces(ctx, "EntryCreate", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	n, err := s.TraceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	s := NewScheduleStore(setupTestDB(t))

	late := models.ScheduleBlock{ID: "2", UserID: "u1", StartAt: "2025-11-14T15:00:00Z", EndAt: "2025-11-14T16:00:00Z", CreatedAt: "x"}
	early := models.ScheduleBlock{ID: "1", UserID: "u1", StartAt: "2025-11-10T09:00:00Z", EndAt: "2025-11-10T10:00:00Z", CreatedAt: "x"}
	require.NoError(t, s.SaveBlock(ctx, late))
	require.NoError(t, s.SaveBlock(ctx, early))

	got, err := s.ListBlocks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)

	none, err := s.ListBlocks(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPictureStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2025, time.November, 5, 10, 0, 0, 0, time.UTC)
	pics := NewPictureStore(db, clock.NewManual(now))

	empty, err := pics.OperatingPicture(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, empty.Next72h)
	assert.Nil(t, empty.CadenceProfile.LastMessageAt)

	schedules := NewScheduleStore(db)
	for _, b := range []models.ScheduleBlock{
		{ID: "past", UserID: "u1", StartAt: "2025-11-04T09:00:00Z", EndAt: "2025-11-04T10:00:00Z"},
		{ID: "soon", UserID: "u1", StartAt: "2025-11-06T09:00:00Z", EndAt: "2025-11-06T10:00:00Z", Intent: "focus.block"},
		{ID: "later", UserID: "u1", StartAt: "2025-11-20T09:00:00Z", EndAt: "2025-11-20T10:00:00Z"},
	} {
		require.NoError(t, schedules.SaveBlock(ctx, b))
	}
	require.NoError(t, NewMemoryRowStore(db).SaveRows(ctx, []models.MemoryRow{
		{ID: "g1", Kind: models.KindGoal, Text: "run a marathon", Timestamp: 300, Embedding: []float32{1}},
		{ID: "e1", Kind: models.KindEntry, Text: "long run", Timestamp: 200, Embedding: []float32{1}},
		{ID: "p1", Kind: models.KindPref, Text: "mornings", Timestamp: 100, Embedding: []float32{1}},
		{ID: "g2", Owner: "u2", Kind: models.KindGoal, Text: "someone else's goal", Timestamp: 400, Embedding: []float32{1}},
	}))

	pic, err := pics.OperatingPicture(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pic.Next72h, 1)
	assert.Equal(t, "soon", pic.Next72h[0]["id"])
	require.Len(t, pic.TopGoals, 1)
	assert.Equal(t, "g1", pic.TopGoals[0]["id"])
	require.Len(t, pic.HotEntries, 1)
	assert.Equal(t, "e1", pic.HotEntries[0]["id"])
	require.NotNil(t, pic.CadenceProfile.LastMessageAt)
	assert.Equal(t, int64(300), *pic.CadenceProfile.LastMessageAt)
}
