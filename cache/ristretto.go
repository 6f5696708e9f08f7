package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoStore wraps dgraph-io/ristretto/v2, an admission-policy
// cache (TinyLFU) that tracks per-entry cost — here every entry costs
// 1 since the value is already size-bounded by the response itself.
type RistrettoStore struct {
	c   *ristretto.Cache[string, []byte]
	idx *tableIndex
}

func NewRistrettoStore() (*RistrettoStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e7,
		MaxCost:     1 << 28,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize ristretto")
	}
	return &RistrettoStore{c: c, idx: newTableIndex()}, nil
}

func (r *RistrettoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (r *RistrettoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.c.SetWithTTL(key, value, 1, ttl)
	r.c.Wait()
	r.idx.record(tableOf(key), key)
	return nil
}

func (r *RistrettoStore) Delete(ctx context.Context, key string) error {
	r.c.Del(key)
	return nil
}

func (r *RistrettoStore) InvalidateTable(ctx context.Context, table string) error {
	for _, key := range r.idx.take(table) {
		_ = r.Delete(ctx, key)
	}
	return nil
}

func (r *RistrettoStore) Close() error {
	r.c.Close()
	return nil
}
