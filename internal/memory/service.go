// Package memory caches scored memory rows for retrieval. Rows live in
// process memory; remote retrieval and SQLite snapshots are optional
// collaborators.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/embedding"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/privacy"
	"github.com/iammorganparry/clive/apps/understanding/internal/search"
)

const (
	MaxCachedRows    = 512
	RemoteBriefLimit = 9
	MinBriefLimit    = 3
	MaxTopK          = 20
	DefaultTopK      = 5
)

// RemoteRetrieval ranks a user's stored snippets against a query.
type RemoteRetrieval interface {
	Search(ctx context.Context, userID, query string, scopes []models.RagScope, limit int) ([]models.Snippet, error)
}

// OperatingPictureSource returns the current state snapshot for a user.
// A nil picture with a nil error means none is available.
type OperatingPictureSource interface {
	OperatingPicture(ctx context.Context, userID string) (*models.OperatingPicture, error)
}

// Persister snapshots rows outside the process.
type Persister interface {
	SaveRows(ctx context.Context, rows []models.MemoryRow) error
	DeleteRow(ctx context.Context, owner, id string) error
	Prune(ctx context.Context, keep int) (int64, error)
	LoadNewest(ctx context.Context, limit int) ([]models.MemoryRow, error)
}

// Options configures a Store. Only Embedder is required. Dimension sizes
// the zero vector used when embedding fails; zero means
// embedding.FallbackDimension.
type Options struct {
	Embedder  embedding.Embedder
	Dimension int
	Remote    RemoteRetrieval
	Pictures  OperatingPictureSource
	Persister Persister
	Clock     clock.Clock
	Logger    *slog.Logger
	Capacity  int
}

// rowKey scopes a row id to its owner.
type rowKey struct {
	owner, id string
}

func keyOf(r models.MemoryRow) rowKey { return rowKey{owner: r.Owner, id: r.ID} }

// Store holds memory rows behind one RWMutex. Rows are keyed by owner and
// id, so two users may hold the same id.
type Store struct {
	mu       sync.RWMutex
	rows     map[rowKey]models.MemoryRow
	capacity int
	dim      int

	embedder  embedding.Embedder
	remote    RemoteRetrieval
	pictures  OperatingPictureSource
	persister Persister
	clock     clock.Clock
	logger    *slog.Logger
}

func NewStore(opts Options) *Store {
	if opts.Embedder == nil {
		opts.Embedder = embedding.NewHashEmbedder()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = MaxCachedRows
	}
	if opts.Dimension <= 0 {
		opts.Dimension = embedding.FallbackDimension
	}
	return &Store{
		rows:      make(map[rowKey]models.MemoryRow),
		capacity:  opts.Capacity,
		dim:       opts.Dimension,
		embedder:  opts.Embedder,
		remote:    opts.Remote,
		pictures:  opts.Pictures,
		persister: opts.Persister,
		clock:     clock.OrReal(opts.Clock),
		logger:    opts.Logger,
	}
}

// UpsertInput describes one row to store. Timestamp 0 means now; a nil
// Embedding is derived from Text. An empty Owner stores a shared row.
type UpsertInput struct {
	ID        string
	Owner     string
	Kind      models.MemoryKind
	Text      string
	Timestamp int64
	Embedding []float32
}

// Upsert stores or replaces a row, then enforces capacity by keeping the
// newest rows. Text made only of <private> blocks is skipped.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (models.MemoryRow, error) {
	if strings.TrimSpace(in.ID) == "" {
		return models.MemoryRow{}, models.InvalidInput("memory row id is required")
	}
	if in.Kind == "" {
		in.Kind = models.KindEntry
	}
	if strings.Contains(in.Text, "<private>") && privacy.HasOnlyPrivateContent(in.Text) {
		return models.MemoryRow{}, models.InvalidInput("memory row %s has only private content", in.ID)
	}
	text := privacy.StripPrivateTags(in.Text)

	ts := in.Timestamp
	if ts == 0 {
		ts = clock.NowMillis(s.clock)
	}

	vec := in.Embedding
	if len(vec) == 0 {
		vec = s.embed(ctx, text)
	}
	row := models.MemoryRow{
		ID:        in.ID,
		Owner:     in.Owner,
		Kind:      in.Kind,
		Text:      text,
		Timestamp: ts,
		Embedding: embedding.L2Normalize(vec),
	}

	s.mu.Lock()
	s.rows[keyOf(row)] = row
	evicted := evictOldest(s.rows, s.capacity)
	s.mu.Unlock()

	s.persist(ctx, row, evicted)
	return row, nil
}

// Remove deletes the owner's row; absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, owner, id string) {
	s.mu.Lock()
	delete(s.rows, rowKey{owner: owner, id: id})
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteRow(ctx, owner, id); err != nil {
			s.logger.Warn("memory snapshot delete failed", "id", id,
				"error", models.Degraded(models.DependencyPersistence, err))
		}
	}
}

// Get returns a copy of the owner's row.
func (s *Store) Get(owner, id string) (models.MemoryRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[rowKey{owner: owner, id: id}]
	return row, ok
}

// Len returns the number of cached rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Warm reloads the newest snapshotted rows. It is a no-op without a persister.
func (s *Store) Warm(ctx context.Context) (int, error) {
	if s.persister == nil {
		return 0, nil
	}
	rows, err := s.persister.LoadNewest(ctx, s.capacity)
	if err != nil {
		return 0, models.Degraded(models.DependencyPersistence, err)
	}
	s.mu.Lock()
	for _, r := range rows {
		if _, exists := s.rows[keyOf(r)]; !exists {
			s.rows[keyOf(r)] = r
		}
	}
	evictOldest(s.rows, s.capacity)
	s.mu.Unlock()
	return len(rows), nil
}

func (s *Store) embed(ctx context.Context, text string) []float32 {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		if err != nil {
			s.logger.Warn("embedding failed, using zero vector",
				"error", models.Degraded(models.DependencyEmbedding, err))
		}
		return make([]float32, s.dim)
	}
	return vec
}

func (s *Store) persist(ctx context.Context, row models.MemoryRow, evicted bool) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveRows(ctx, []models.MemoryRow{row}); err != nil {
		s.logger.Warn("memory snapshot failed", "id", row.ID,
			"error", models.Degraded(models.DependencyPersistence, err))
		return
	}
	if evicted {
		if _, err := s.persister.Prune(ctx, s.capacity); err != nil {
			s.logger.Warn("memory snapshot prune failed",
				"error", models.Degraded(models.DependencyPersistence, err))
		}
	}
}

// evictOldest deletes rows from the map until at most keep remain, oldest
// first. Ties on timestamp evict the higher owner and id. Callers hold the
// write lock. It reports whether anything was evicted.
func evictOldest(rows map[rowKey]models.MemoryRow, keep int) bool {
	if len(rows) <= keep {
		return false
	}
	all := make([]models.MemoryRow, 0, len(rows))
	for _, r := range rows {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp > all[j].Timestamp
		}
		if all[i].Owner != all[j].Owner {
			return all[i].Owner < all[j].Owner
		}
		return all[i].ID < all[j].ID
	})
	for _, r := range all[keep:] {
		delete(rows, keyOf(r))
	}
	return true
}

// cosineRank scores rows against a unit query vector, best first.
func cosineRank(query []float32, rows []models.MemoryRow) []models.MemoryRecord {
	out := make([]models.MemoryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.MemoryRecord{MemoryRow: r, Score: search.Dot(query, r.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
