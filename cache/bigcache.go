package cache

import (
	"context"
	"time"

	"github.com/allegro/bigcache"
	"github.com/cockroachdb/errors"
)

// BigcacheStore wraps allegro/bigcache, a zero-GC-pressure shard map
// tuned for large entry counts. bigcache applies one fixed TTL for the
// whole cache (set at construction), so per-Set ttl arguments are
// advisory here — matched against the life of the configured default.
type BigcacheStore struct {
	c   *bigcache.BigCache
	idx *tableIndex
}

func NewBigcacheStore(defaultTTL time.Duration) (*BigcacheStore, error) {
	cfg := bigcache.DefaultConfig(defaultTTL)
	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize bigcache")
	}
	return &BigcacheStore{c: c, idx: newTableIndex()}, nil
}

func (b *BigcacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "bigcache get failed")
	}
	return v, true, nil
}

func (b *BigcacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.c.Set(key, value); err != nil {
		return errors.Wrap(err, "bigcache set failed")
	}
	b.idx.record(tableOf(key), key)
	return nil
}

func (b *BigcacheStore) Delete(ctx context.Context, key string) error {
	if err := b.c.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return errors.Wrap(err, "bigcache delete failed")
	}
	return nil
}

func (b *BigcacheStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range b.idx.take(table) {
		_ = b.Delete(ctx, key)
	}
	return nil
}

func (b *BigcacheStore) Close() error { return b.c.Close() }
