package cache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
)

// FreecacheStore wraps coocood/freecache, a ring-buffer cache with
// per-entry TTL and bounded memory (fixed size set at construction).
type FreecacheStore struct {
	c   *freecache.Cache
	idx *tableIndex
}

func NewFreecacheStore(sizeBytes int) *FreecacheStore {
	return &FreecacheStore{c: freecache.NewCache(sizeBytes), idx: newTableIndex()}
}

func (f *FreecacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := f.c.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (f *FreecacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.c.Set([]byte(key), value, int(ttl.Seconds())); err != nil {
		return err
	}
	f.idx.record(tableOf(key), key)
	return nil
}

func (f *FreecacheStore) Delete(ctx context.Context, key string) error {
	f.c.Del([]byte(key))
	return nil
}

func (f *FreecacheStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range f.idx.take(table) {
		_ = f.Delete(ctx, key)
	}
	return nil
}

func (f *FreecacheStore) Close() error { return nil }
