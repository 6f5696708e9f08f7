package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the default driver: patrickmn/go-cache, the same
// library the teacher's corpus favors for a plain in-process TTL
// cache, with no external dependency.
type MemoryStore struct {
	c   *gocache.Cache
	idx *tableIndex
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		c:   gocache.New(defaultTTL, defaultTTL*2),
		idx: newTableIndex(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	m.idx.record(tableOf(key), key)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range m.idx.take(table) {
		m.c.Delete(key)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
