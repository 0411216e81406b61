package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/search"
)

// CacheStore persists embeddings keyed by content hash.
type CacheStore interface {
	Get(ctx context.Context, hash string) (*models.EmbeddingCacheEntry, error)
	Put(ctx context.Context, entry *models.EmbeddingCacheEntry) error
}

// CachedEmbedder wraps an embedder with content-hash caching.
type CachedEmbedder struct {
	inner  Embedder
	cache  CacheStore
	model  string
	logger *slog.Logger
}

func NewCachedEmbedder(inner Embedder, cache CacheStore, model string, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, cache: cache, model: model, logger: logger}
}

// Embed returns the embedding for text, using the cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(e.model + "\x00" + text)

	entry, err := e.cache.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		if vec := search.BytesToFloat32(entry.Embedding); len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	cacheEntry := &models.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   search.Float32ToBytes(vec),
		Dimension:   len(vec),
		Model:       e.model,
	}
	if err := e.cache.Put(ctx, cacheEntry); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
