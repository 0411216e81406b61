package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CollectionManager maps user IDs to Qdrant collections and ensures
// they are created on first use.
type CollectionManager struct {
	client *QdrantClient
	prefix string
	known  map[string]bool
	mu     sync.RWMutex
}

func NewCollectionManager(client *QdrantClient, prefix string) *CollectionManager {
	if prefix == "" {
		prefix = "understanding_"
	}
	return &CollectionManager{
		client: client,
		prefix: prefix,
		known:  make(map[string]bool),
	}
}

// CollectionName returns the collection name for a user ID. Characters
// Qdrant rejects in names are replaced with underscores.
func (m *CollectionManager) CollectionName(userID string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, userID)
	return m.prefix + clean
}

// EnsureForUser creates the collection for a user if it doesn't already
// exist. Results are cached in-memory.
func (m *CollectionManager) EnsureForUser(ctx context.Context, userID string) (string, error) {
	name := m.CollectionName(userID)

	m.mu.RLock()
	if m.known[name] {
		m.mu.RUnlock()
		return name, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.known[name] {
		return name, nil
	}
	if err := m.client.EnsureCollection(ctx, name); err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", name, err)
	}
	m.known[name] = true
	return name, nil
}
