package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iammorganparry/clive/apps/understanding/internal/embedding"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// pointNamespace derives stable Qdrant point ids from memory ids.
var pointNamespace = uuid.MustParse("6f1c2a52-9a5e-4d0b-8d0e-3f5d1f0b7a21")

// Retriever serves scoped, scored retrieval for a user from Qdrant.
type Retriever struct {
	client   *QdrantClient
	colls    *CollectionManager
	embedder embedding.Embedder
}

func NewRetriever(client *QdrantClient, colls *CollectionManager, embedder embedding.Embedder) *Retriever {
	return &Retriever{client: client, colls: colls, embedder: embedder}
}

// ScopeForKind maps a memory kind onto its retrieval scope.
func ScopeForKind(kind models.MemoryKind) models.RagScope {
	switch kind {
	case models.KindGoal:
		return models.ScopeGoal
	case models.KindSchedule, models.KindEvent:
		return models.ScopeSchedule
	default:
		return models.ScopeEntry
	}
}

// Index embeds row text and upserts it into the user's collection.
func (r *Retriever) Index(ctx context.Context, userID string, row models.MemoryRow) error {
	coll, err := r.colls.EnsureForUser(ctx, userID)
	if err != nil {
		return err
	}
	vec := row.Embedding
	if len(vec) == 0 {
		if vec, err = r.embedder.Embed(ctx, row.Text); err != nil {
			return fmt.Errorf("embed row: %w", err)
		}
	}
	point := Point{
		ID:     uuid.NewSHA1(pointNamespace, []byte(row.ID)).String(),
		Vector: vec,
		Payload: map[string]any{
			"id":    row.ID,
			"kind":  string(row.Kind),
			"scope": string(ScopeForKind(row.Kind)),
			"text":  row.Text,
			"ts":    row.Timestamp,
		},
	}
	return r.client.Upsert(ctx, coll, []Point{point})
}

// Forget removes a row from the user's collection.
func (r *Retriever) Forget(ctx context.Context, userID, id string) error {
	coll, err := r.colls.EnsureForUser(ctx, userID)
	if err != nil {
		return err
	}
	return r.client.DeletePoints(ctx, coll, []string{uuid.NewSHA1(pointNamespace, []byte(id)).String()})
}

// Search returns ranked snippets for query within scopes. No scopes means all.
func (r *Retriever) Search(ctx context.Context, userID, query string, scopes []models.RagScope, limit int) ([]models.Snippet, error) {
	coll, err := r.colls.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *Filter
	if len(scopes) > 0 && len(scopes) < len(models.AllScopes) {
		values := make([]string, len(scopes))
		for i, s := range scopes {
			values[i] = string(s)
		}
		filter = &Filter{Must: []Condition{{Key: "scope", Match: MatchValue{Any: values}}}}
	}

	results, err := r.client.Search(ctx, coll, vec, limit, filter)
	if err != nil {
		return nil, err
	}

	snippets := make([]models.Snippet, 0, len(results))
	for _, res := range results {
		s := models.Snippet{
			ID:       payloadString(res.Payload, "id", res.ID),
			Kind:     models.MemoryKind(payloadString(res.Payload, "kind", string(models.KindEntry))),
			Score:    res.Score,
			Title:    payloadString(res.Payload, "title", ""),
			Snippet:  payloadString(res.Payload, "text", ""),
			Metadata: map[string]any{},
		}
		if ts, ok := res.Payload["ts"]; ok {
			s.Metadata["ts"] = ts
		}
		snippets = append(snippets, s)
	}
	return snippets, nil
}

func payloadString(p map[string]any, key, fallback string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
