package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/forbearing/crudgate/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, excludeTables, varyBy []string) *cache.Manager {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	return cache.NewManager(store, time.Minute, nil, excludeTables, varyBy)
}

func TestManager_SetThenGetHits(t *testing.T) {
	m := newTestManager(t, nil, nil)
	ctx := context.Background()
	key := cache.Key{Table: "users", Query: map[string]string{"page": "1"}}

	require.NoError(t, m.Set(ctx, "users", key, []byte(`{"data":[]}`)))

	res, err := m.Get(ctx, "users", key)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, `{"data":[]}`, string(res.Entry.Body))
}

func TestManager_ExcludedTableNeverCaches(t *testing.T) {
	m := newTestManager(t, []string{"secrets"}, nil)
	ctx := context.Background()
	key := cache.Key{Table: "secrets"}

	require.NoError(t, m.Set(ctx, "secrets", key, []byte("x")))

	res, err := m.Get(ctx, "secrets", key)
	require.NoError(t, err)
	assert.False(t, res.Hit)
}

func TestManager_InvalidateDropsOnlyThatTable(t *testing.T) {
	m := newTestManager(t, nil, nil)
	ctx := context.Background()
	usersKey := cache.Key{Table: "users"}
	postsKey := cache.Key{Table: "posts"}

	require.NoError(t, m.Set(ctx, "users", usersKey, []byte("u")))
	require.NoError(t, m.Set(ctx, "posts", postsKey, []byte("p")))

	require.NoError(t, m.Invalidate(ctx, "users"))

	usersRes, err := m.Get(ctx, "users", usersKey)
	require.NoError(t, err)
	assert.False(t, usersRes.Hit)

	postsRes, err := m.Get(ctx, "posts", postsKey)
	require.NoError(t, err)
	assert.True(t, postsRes.Hit)
}

func TestKey_DifferentVaryByProducesDifferentKeys(t *testing.T) {
	k1 := cache.Key{Table: "users", VaryBy: map[string]string{"role": "admin"}}
	k2 := cache.Key{Table: "users", VaryBy: map[string]string{"role": "viewer"}}
	assert.NotEqual(t, k1.String(), k2.String())
}
