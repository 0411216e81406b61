package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/embedding"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// SearchOptions controls SearchTopN. Kinds are matched case-insensitively;
// an empty list matches every kind. UserID enables remote retrieval and
// limits local search to that user's rows plus shared ones.
type SearchOptions struct {
	Query  string
	Kinds  []models.MemoryKind
	TopK   int
	UserID string
}

// ClampTopK bounds k to [1,20]; zero means the default of 5.
func ClampTopK(k int) int {
	if k == 0 {
		k = DefaultTopK
	}
	return max(1, min(k, MaxTopK))
}

// SearchTopN returns up to TopK records for the query. Remote retrieval is
// tried first for authenticated users; any failure or empty result falls
// back to local cosine search.
func (s *Store) SearchTopN(ctx context.Context, opts SearchOptions) []models.MemoryRecord {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return []models.MemoryRecord{}
	}
	topK := ClampTopK(opts.TopK)
	kinds := lowerKinds(opts.Kinds)

	if opts.UserID != "" && s.remote != nil {
		scopes := ScopesForKinds(kinds)
		snippets, err := s.remote.Search(ctx, opts.UserID, query, scopes, topK)
		if err != nil {
			s.logger.Warn("remote retrieval failed, using local search",
				"error", models.Degraded(models.DependencyRetrieval, err))
		} else if len(snippets) > 0 {
			records := s.absorbSnippets(ctx, opts.UserID, snippets)
			if len(records) > topK {
				records = records[:topK]
			}
			return records
		}
	}

	queryVec := embedding.L2Normalize(s.embed(ctx, query))

	s.mu.RLock()
	rows := make([]models.MemoryRow, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Owner != "" && r.Owner != opts.UserID {
			continue
		}
		if len(kinds) == 0 || kinds[strings.ToLower(string(r.Kind))] {
			rows = append(rows, r)
		}
	}
	s.mu.RUnlock()

	ranked := cosineRank(queryVec, rows)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// absorbSnippets converts remote snippets into records and upserts them as
// userID's rows so that user's later local searches can see them. Record
// ids are "kind:id" and timestamps descend from now in result order.
func (s *Store) absorbSnippets(ctx context.Context, userID string, snippets []models.Snippet) []models.MemoryRecord {
	now := clock.NowMillis(s.clock)
	records := make([]models.MemoryRecord, 0, len(snippets))
	for i, sn := range snippets {
		kind := sn.Kind
		if kind == "" {
			kind = models.KindEntry
		}
		vec := embedding.L2Normalize(s.embed(ctx, sn.Snippet))
		row := models.MemoryRow{
			ID:        fmt.Sprintf("%s:%s", kind, sn.ID),
			Owner:     userID,
			Kind:      kind,
			Text:      sn.Snippet,
			Timestamp: now - int64(i),
			Embedding: vec,
		}
		records = append(records, models.MemoryRecord{MemoryRow: row, Score: sn.Score})

		if _, err := s.Upsert(ctx, UpsertInput{
			ID: row.ID, Owner: userID, Kind: row.Kind, Text: row.Text, Timestamp: row.Timestamp, Embedding: row.Embedding,
		}); err != nil {
			s.logger.Debug("skipping remote snippet", "id", row.ID, "error", err)
		}
	}
	return records
}

// ScopesForKinds maps memory kinds onto retrieval scopes. Nothing mapped
// means all scopes.
func ScopesForKinds(kinds map[string]bool) []models.RagScope {
	var scopes []models.RagScope
	if kinds["entry"] || kinds["journal"] || kinds["pref"] {
		scopes = append(scopes, models.ScopeEntry)
	}
	if kinds["goal"] {
		scopes = append(scopes, models.ScopeGoal)
	}
	if kinds["schedule"] || kinds["event"] {
		scopes = append(scopes, models.ScopeSchedule)
	}
	if len(scopes) == 0 {
		return models.AllScopes
	}
	return scopes
}

func lowerKinds(kinds []models.MemoryKind) map[string]bool {
	if len(kinds) == 0 {
		return nil
	}
	out := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		out[strings.ToLower(string(k))] = true
	}
	return out
}
