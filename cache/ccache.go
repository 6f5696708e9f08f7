package cache

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"
)

// CcacheStore wraps karlseguin/ccache/v3, an LRU cache with
// per-entry TTL and O(1) promotion, generic over the stored byte
// slice type.
type CcacheStore struct {
	c   *ccache.Cache[[]byte]
	idx *tableIndex
}

func NewCcacheStore(maxItems int64) *CcacheStore {
	return &CcacheStore{
		c:   ccache.New(ccache.Configure[[]byte]().MaxSize(maxItems)),
		idx: newTableIndex(),
	}
}

func (c *CcacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := c.c.Get(key)
	if item == nil || item.Expired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (c *CcacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.Set(key, value, ttl)
	c.idx.record(tableOf(key), key)
	return nil
}

func (c *CcacheStore) Delete(ctx context.Context, key string) error {
	c.c.Delete(key)
	return nil
}

func (c *CcacheStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range c.idx.take(table) {
		_ = c.Delete(ctx, key)
	}
	return nil
}

func (c *CcacheStore) Close() error {
	c.c.Stop()
	return nil
}
