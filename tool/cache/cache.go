// Package cache provides a best-effort result cache for tool adapters.
// Cache failures never fail a tool call; a miss just means the adapter
// hits the upstream provider again.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores tool results keyed by their request signature.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Cache with optional TTL.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemory creates an in-memory cache. A ttl of 0 means entries never expire.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns a cached value if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

// Set stores a value under the key.
func (m *Memory) Set(_ context.Context, key, value string) {
	entry := memoryEntry{value: value}
	if m.ttl > 0 {
		entry.expiresAt = time.Now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}
