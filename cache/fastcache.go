package cache

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

// FastcacheStore wraps VictoriaMetrics/fastcache, a low-GC-overhead
// byte cache with no native per-key expiry — an 8-byte unix-nano
// deadline is prefixed onto every stored value and checked on Get, the
// same trick fastcache's own README suggests for TTL support.
type FastcacheStore struct {
	c   *fastcache.Cache
	idx *tableIndex
}

func NewFastcacheStore(maxBytes int) *FastcacheStore {
	return &FastcacheStore{c: fastcache.New(maxBytes), idx: newTableIndex()}
}

func (f *FastcacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw := f.c.GetBig(nil, []byte(key))
	if raw == nil || len(raw) < 8 {
		return nil, false, nil
	}
	deadline := int64(binary.BigEndian.Uint64(raw[:8]))
	if time.Now().UnixNano() > deadline {
		f.c.Del([]byte(key))
		return nil, false, nil
	}
	return raw[8:], true, nil
}

func (f *FastcacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	deadline := time.Now().Add(ttl).UnixNano()
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(deadline))
	copy(buf[8:], value)
	f.c.SetBig([]byte(key), buf)
	f.idx.record(tableOf(key), key)
	return nil
}

func (f *FastcacheStore) Delete(ctx context.Context, key string) error {
	f.c.Del([]byte(key))
	return nil
}

func (f *FastcacheStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range f.idx.take(table) {
		_ = f.Delete(ctx, key)
	}
	return nil
}

func (f *FastcacheStore) Close() error { return nil }
