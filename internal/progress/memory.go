package progress

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache keeps snapshots in process. Used when no Redis is configured.
type MemoryCache struct {
	items *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: cache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, sessionID string) (Snapshot, error) {
	v, ok := m.items.Get(key(sessionID))
	if !ok {
		return Snapshot{}, ErrMiss
	}
	return v.(Snapshot), nil
}

func (m *MemoryCache) Set(_ context.Context, snap Snapshot) error {
	m.items.SetDefault(key(snap.SessionID), snap)
	return nil
}

func (m *MemoryCache) Close() error {
	m.items.Flush()
	return nil
}
