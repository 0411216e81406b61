package memory

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// BriefOptions controls GetBrief.
type BriefOptions struct {
	// Limit is clamped to [3,9]; zero means 9.
	Limit int
	// CachedPicture skips the operating picture fetch when set.
	CachedPicture *models.OperatingPicture
}

// ClampBriefLimit bounds a brief limit to [3,9]; zero means 9.
func ClampBriefLimit(limit int) int {
	if limit == 0 {
		limit = RemoteBriefLimit
	}
	return max(MinBriefLimit, min(limit, RemoteBriefLimit))
}

// ScopesForIntent infers retrieval scopes from an intent label. A nil
// intent means all scopes.
func ScopesForIntent(intent *models.RoutedIntent) []models.RagScope {
	if intent == nil {
		return models.AllScopes
	}
	label := strings.ToLower(intent.Label)
	var scopes []models.RagScope
	if strings.Contains(label, "goal") {
		scopes = append(scopes, models.ScopeGoal)
	}
	if strings.Contains(label, "schedule") || strings.Contains(label, "calendar") {
		scopes = append(scopes, models.ScopeSchedule)
	}
	if len(scopes) == 0 || strings.Contains(label, "journal") || strings.Contains(label, "reflect") {
		scopes = append(scopes, models.ScopeEntry)
	}
	return scopes
}

// GetBrief fetches the operating picture and scoped retrieval results for
// a user concurrently. Retrieved rows are upserted for later local search.
// Dependency failures degrade to a default picture and empty results.
func (s *Store) GetBrief(ctx context.Context, userID string, intent *models.RoutedIntent, query string, opts BriefOptions) (*models.Brief, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ErrUnauthenticated
	}
	limit := ClampBriefLimit(opts.Limit)
	scopes := ScopesForIntent(intent)

	var (
		picture  *models.OperatingPicture
		snippets []models.Snippet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		picture = s.operatingPicture(gctx, userID, opts.CachedPicture)
		return nil
	})
	g.Go(func() error {
		snippets = s.remoteSnippets(gctx, userID, query, scopes, limit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := s.absorbSnippets(ctx, userID, snippets)
	return &models.Brief{
		OperatingPicture: *picture,
		RAG:              snippets,
		MemoryRecords:    records,
	}, nil
}

func (s *Store) operatingPicture(ctx context.Context, userID string, cached *models.OperatingPicture) *models.OperatingPicture {
	if cached != nil {
		return cached
	}
	if s.pictures != nil {
		p, err := s.pictures.OperatingPicture(ctx, userID)
		if err != nil {
			s.logger.Warn("operating picture unavailable, using default",
				"error", models.Degraded(models.DependencyPicture, err))
		} else if p != nil {
			return p
		}
	}
	def := models.DefaultOperatingPicture()
	return &def
}

func (s *Store) remoteSnippets(ctx context.Context, userID, query string, scopes []models.RagScope, limit int) []models.Snippet {
	if s.remote == nil || strings.TrimSpace(query) == "" {
		return []models.Snippet{}
	}
	snippets, err := s.remote.Search(ctx, userID, strings.TrimSpace(query), scopes, limit)
	if err != nil {
		s.logger.Warn("brief retrieval failed",
			"error", models.Degraded(models.DependencyRetrieval, err))
		return []models.Snippet{}
	}
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}
	return snippets
}
