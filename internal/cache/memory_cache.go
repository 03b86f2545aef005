// Package cache holds rendered widget documents between requests
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	document  string
	expiresAt time.Time
}

// MemoryCache is a process local cache used when Redis is not configured
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, widgetID, variant string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := buildKey(widgetID, variant)
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.document, true, nil
}

// Set stores a document; a zero ttl never expires
func (m *MemoryCache) Set(ctx context.Context, widgetID, variant, document string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{document: document}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[buildKey(widgetID, variant)] = entry
	return nil
}

func (m *MemoryCache) FlushWidget(ctx context.Context, widgetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := buildKey(widgetID, "")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}
