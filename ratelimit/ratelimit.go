// Package ratelimit implements the sliding-window request limiter from
// §4.6: a pluggable Store tracks per-identifier request timestamps
// within a trailing window, behind memory/file/redis backends
// selected by config.RateLimit.Store. The Redis backend's sorted-set
// sliding window is grounded on the streamspace-dev-streamspace
// api/internal/cache.Cache client-construction pattern (pool sizing,
// timeouts, Ping-on-connect); the file backend's advisory locking is
// grounded on uschtwill-beads' cmd/bd/sync.go use of gofrs/flock.
package ratelimit

import (
	"context"
	"time"
)

// Identifier precedence is user > apikey > ip, resolved by the router
// before calling Allow — this package only ever sees the final key.

// Decision is the outcome of a rate-limit check, carrying enough to
// populate the X-RateLimit-* response headers regardless of verdict.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store is the pluggable sliding-window counter backend.
type Store interface {
	// Allow reports whether one request for key at now falls within
	// limit requests over the trailing window, and records it only
	// when it is allowed.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Close() error
}

// Limiter wraps a Store with the configured limit/window so callers
// don't thread them through on every call.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	return l.store.Allow(ctx, key, l.limit, l.window)
}

func (l *Limiter) Close() error { return l.store.Close() }
