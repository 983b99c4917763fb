package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryKV is an in-process KV cache with the same contract as Cache.
// Handy for tests and for running without a cache file.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: map[string]memoryEntry{}}
}

func (m *MemoryKV) GetJSON(key string, out any) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryKV) SetJSON(key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload, createdAt: time.Now()}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Prune(maxEntries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
			delete(m.entries, key)
		}
	}
	if maxEntries <= 0 || len(m.entries) <= maxEntries {
		return nil
	}

	type keyed struct {
		key       string
		createdAt time.Time
	}
	all := make([]keyed, 0, len(m.entries))
	for key, entry := range m.entries {
		all = append(all, keyed{key, entry.createdAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })
	for _, item := range all[:len(all)-maxEntries] {
		delete(m.entries, item.key)
	}
	return nil
}

// Len reports the number of live entries.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
