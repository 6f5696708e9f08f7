package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/forbearing/crudgate/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AllowsUpToLimitThenBlocks(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "user:alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
	}

	d, err := limiter.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestMemoryStore_WindowSlidesIndependentlyPerKey(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 1, time.Minute)
	ctx := context.Background()

	d1, err := limiter.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d1.Allowed)

	d2, err := limiter.Allow(ctx, "user:bob")
	require.NoError(t, err)
	assert.True(t, d2.Allowed, "a different key must not share alice's quota")

	d3, err := limiter.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, d3.Allowed)
}

func TestMemoryStore_OldEntriesExpireOutOfWindow(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(store, 1, 20*time.Millisecond)
	ctx := context.Background()

	d1, err := limiter.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d1.Allowed)

	time.Sleep(30 * time.Millisecond)

	d2, err := limiter.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d2.Allowed, "request after window elapses should be allowed again")
}
