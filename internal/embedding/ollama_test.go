package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.5}}})
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "nomic-embed-text", time.Second)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestOllamaClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "missing", time.Second)
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Error(t, c.HealthCheck(context.Background()))
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*models.EmbeddingCacheEntry
}

func (m *mapCache) Get(_ context.Context, hash string) (*models.EmbeddingCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[hash], nil
}

func (m *mapCache) Put(_ context.Context, e *models.EmbeddingCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ContentHash] = e
	return nil
}

func TestCachedEmbedder(t *testing.T) {
	calls := 0
	inner := EmbedderFunc(func(context.Context, string) ([]float32, error) {
		calls++
		return []float32{1, 0, 0}, nil
	})
	cache := &mapCache{entries: map[string]*models.EmbeddingCacheEntry{}}
	e := NewCachedEmbedder(inner, cache, "test-model", nil)

	ctx := context.Background()
	first, err := e.Embed(ctx, "same text")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Len(t, cache.entries, 1)
}
