package entitycache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	fragment map[string]interface{}
	expires  time.Time
}

// MemoryBackend is the default in-memory Backend: a mutex-guarded map
// with per-entry TTL, lazily swept on read. Sufficient for a single
// gateway process; entity_caching.storage pointing at an external KV
// (e.g. redis) would implement the same Backend interface instead (see
// DESIGN.md for why no such client is wired here).
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (map[string]interface{}, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.fragment, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, fragment map[string]interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{fragment: fragment, expires: expires}
	return nil
}

// Len reports the number of entries currently cached, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
